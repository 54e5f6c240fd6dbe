package common

// AuthorizationHeaderName is the HTTP header (and lower-cased gRPC metadata
// key) that carries the bearer token on protected calls.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only authorization scheme accepted by the server.
const BearerScheme = "Bearer"

// TokenTypeBearer is the token_type reported to clients on login.
const TokenTypeBearer = "bearer"
