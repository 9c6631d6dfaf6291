// Package constants holds configuration values shared across layers.
package constants

// Deployment environments (env.env).
const (
	EnvLocal      = "local"
	EnvDevelop    = "develop"
	EnvProduction = "production"
)

// Event publisher providers (pubsub.provider).
const (
	PubSubProviderNoop     = "noop"
	PubSubProviderLocal    = "local"
	PubSubProviderGoogle   = "google"
	PubSubProviderRabbitMQ = "rabbitmq"
)

// Mail sender providers (mail.provider).
const (
	MailProviderLog  = "log"
	MailProviderSMTP = "smtp"
)

// Message attribute keys carried next to every verification event.
const (
	AttrEventID   = "event_id"
	AttrAccountID = "account_id"
	AttrRequestID = "request_id"
	AttrEventType = "event_type"

	EventTypeVerificationRequested = "verification.requested"
)
