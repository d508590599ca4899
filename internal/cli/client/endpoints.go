package client

const (
	// n8n production webhook prefix
	webhookPrefix = "/webhook"

	// Chat endpoints
	endpointChat        = webhookPrefix + "/chat"         // POST - submit a message
	endpointGetMessages = webhookPrefix + "/get-messages" // GET - ?user_id=&after_ts=

	// Access control endpoints
	endpointBlock   = webhookPrefix + "/api/v1/bloqueio"    // POST {email}
	endpointUnblock = webhookPrefix + "/api/v1/desbloqueio" // POST {email}
)
