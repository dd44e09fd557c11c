// Package capability implements the platform capability registry.
//
// A capability is a named, versioned, tenant scoped implementation of one
// platform operation. Handlers are typed per kind (match, evaluate,
// allocate); the kind of an entry is derived from its handler type so a
// handler can never be registered under the wrong kind.
//
// Resolution precedence for Resolve:
//  1. Prefer: the entry whose key starts with "prefer@"
//  2. Version: the entry whose key ends with "@version"
//  3. Tenant: the first entry scoped to the tenant, else the first global one
//  4. the first registered entry
//
// The registry is a plain value: build it with New or NewWithDefaults and
// inject it where needed.
package capability
