package rpccontract

const (
	ServiceName = "namecache.v1.NameCache"
)

const (
	MethodGetHealth        = "/" + ServiceName + "/GetHealth"
	MethodGetStatus        = "/" + ServiceName + "/GetStatus"
	MethodLookupNamehash   = "/" + ServiceName + "/LookupNamehash"
	MethodResolveCovenants = "/" + ServiceName + "/ResolveCovenants"
	MethodResolveCovenant  = "/" + ServiceName + "/ResolveCovenant"
	MethodLookupAddress    = "/" + ServiceName + "/LookupAddress"
)

// TokenHeader carries the shared token when AUTH_TOKEN is configured.
const TokenHeader = "x-namecache-token"

// PublicMethods skip token checks so probes keep working.
var PublicMethods = map[string]struct{}{
	MethodGetHealth: {},
}
