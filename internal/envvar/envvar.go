package envvar

const (
	// VoxaEnv is the environment variable used to determine the environment
	VoxaEnv = "VOXA_ENV"

	// VoxaConfig is the environment variable used to locate the config file
	VoxaConfig = "VOXA_CONFIG"

	// VoxaHTTPAddr is the environment variable used to override the HTTP listen address
	VoxaHTTPAddr = "VOXA_HTTP_ADDR"

	// VoxaRasaURL is the environment variable used to override the conversational server base URL
	VoxaRasaURL = "VOXA_RASA_URL"

	// VoxaUploadsDir is the environment variable used to override the uploads directory
	VoxaUploadsDir = "VOXA_UPLOADS_DIR"

	// VoxaTranscriptionsDir is the environment variable used to override the transcriptions directory
	VoxaTranscriptionsDir = "VOXA_TRANSCRIPTIONS_DIR"

	// VoxaLogLevel is the environment variable used to override the log level
	VoxaLogLevel = "VOXA_LOG_LEVEL"

	// OpenAIAPIKey is the environment variable holding the OpenAI API key
	OpenAIAPIKey = "OPENAI_API_KEY"
)
