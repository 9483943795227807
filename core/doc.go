// Package core defines the data model and contracts the botmesh turn
// machinery is built from: the Activity wire model and conversation
// references, the per-turn TurnContext with its typed turn state cache and
// response handler chains, the ordered middleware pipeline, and the
// collaborator interfaces (Storage, ConnectorClient, Authenticator,
// TokenProvider) the adapter depends on.
//
// The package has no network or storage code of its own; concrete
// implementations live in the adapter, storage and connector packages.
package core
