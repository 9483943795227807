// Package connector provides the REST implementation of the connector
// client contract, plus the factory that binds clients to service URLs
// and gates credential attachment through the trust store.
package connector
