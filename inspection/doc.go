// Package inspection mirrors live conversation traffic to a debugging
// surface. InterceptionMiddleware is the guarded base that taps inbound,
// outbound and state traffic; InspectionMiddleware builds the /INSPECT
// session protocol on top of it.
package inspection
