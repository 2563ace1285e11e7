package utils

// ServiceName identifies this service in outbound User-Agent headers
const ServiceName = "Qwen-Bridge/1.0"

// HTTP header names
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderUserAgent     = "User-Agent"
	HeaderAccept        = "Accept"
	HeaderCacheControl  = "Cache-Control"
	HeaderConnection    = "Connection"
	HeaderRequestID     = "X-Request-ID"
)

// HTTP header values
const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"
	CacheControlNoCache    = "no-cache"
	ConnectionKeepAlive    = "keep-alive"
)
