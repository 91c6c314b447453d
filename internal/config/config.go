package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/medicox/meeting-signaling/internal/origin"
)

const (
	envVarListenAddr      = "SIGNALING_LISTEN_ADDR"
	envVarPort            = "PORT"
	envVarPublicBaseURL   = "SIGNALING_PUBLIC_BASE_URL"
	envVarAllowedOrigins  = "ALLOWED_ORIGINS"
	envVarTrustProxy      = "TRUST_PROXY"
	envVarLogFormat       = "SIGNALING_LOG_FORMAT"
	envVarLogLevel        = "SIGNALING_LOG_LEVEL"
	envVarShutdownTimeout = "SIGNALING_SHUTDOWN_TIMEOUT"
	envVarMode            = "SIGNALING_MODE"

	envVarWSPingInterval                = "SIGNALING_WS_PING_INTERVAL"
	envVarWSIdleTimeout                 = "SIGNALING_WS_IDLE_TIMEOUT"
	envVarMaxSignalingMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxSignalingMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"
	envVarSendQueueLength               = "SIGNALING_SEND_QUEUE_LENGTH"

	envVarICEServersJSON = "ICE_SERVERS_JSON"
	envVarSTUNURLs       = "STUN_URLS"
	envVarTURNURLs       = "TURN_URLS"
	envVarTURNUsername   = "TURN_USERNAME"
	envVarTURNCredential = "TURN_CREDENTIAL"
	// Names used by the original Node deployment.
	envVarTURNURLLegacy  = "TURN_URL"
	envVarTURNUserLegacy = "TURN_USER"
	envVarTURNPassLegacy = "TURN_PASS"

	envVarTURNRESTSharedSecret   = "TURN_REST_SHARED_SECRET"
	envVarTURNRESTTTLSeconds     = "TURN_REST_TTL_SECONDS"
	envVarTURNRESTUsernamePrefix = "TURN_REST_USERNAME_PREFIX"

	envVarTwilioAccountSID      = "TWILIO_ACCOUNT_SID"
	envVarTwilioAuthToken       = "TWILIO_AUTH_TOKEN"
	envVarTwilioAPIBaseURL      = "TWILIO_API_BASE_URL"
	envVarTwilioTokenTTLSeconds = "TWILIO_TOKEN_TTL_SECONDS"

	envVarICEProviderTimeout    = "ICE_PROVIDER_TIMEOUT"
	envVarICERateLimitPerMinute = "ICE_RATE_LIMIT_PER_MINUTE"
	envVarAuthMode              = "AUTH_MODE"
	envVarAPIKey                = "API_KEY"

	envVarRoomJournalPath = "ROOM_JOURNAL_PATH"
)

const (
	DefaultListenAddr      = "0.0.0.0:5000"
	DefaultMode            = ModeDev
	DefaultShutdownTimeout = 15 * time.Second

	DefaultWSPingInterval                = 30 * time.Second
	DefaultWSIdleTimeout                 = 90 * time.Second
	DefaultMaxSignalingMessageBytes      = 64 * 1024
	DefaultMaxSignalingMessagesPerSecond = 50
	DefaultSendQueueLength               = 256

	DefaultTURNRESTTTLSeconds     int64 = 3600
	DefaultTURNRESTUsernamePrefix       = "meeting"

	DefaultTwilioAPIBaseURL            = "https://api.twilio.com"
	DefaultTwilioTokenTTLSeconds int64 = 86400

	DefaultICEProviderTimeout = 5 * time.Second
	DefaultAuthMode           = AuthModeNone
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// AuthMode controls how the ICE configuration endpoints are protected.
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeAPIKey AuthMode = "api_key"
)

// TurnRESTConfig configures coturn "use-auth-secret" credentials.
type TurnRESTConfig struct {
	SharedSecret   string
	TTLSeconds     int64
	UsernamePrefix string
}

func (c TurnRESTConfig) Enabled() bool {
	return c.SharedSecret != ""
}

// TwilioConfig configures the Network Traversal Service token source.
type TwilioConfig struct {
	AccountSID      string
	AuthToken       string
	APIBaseURL      string
	TokenTTLSeconds int64
}

func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != ""
}

type Config struct {
	ListenAddr     string
	PublicBaseURL  string
	AllowedOrigins []string
	TrustProxy     bool

	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	WSPingInterval                time.Duration
	WSIdleTimeout                 time.Duration
	MaxSignalingMessageBytes      int64
	MaxSignalingMessagesPerSecond int
	SendQueueLength               int

	// STUNServers is always handed out ahead of any TURN entry.
	STUNServers    []webrtc.ICEServer
	TURNURLs       []string
	TURNUsername   string
	TURNCredential string
	TURNREST       TurnRESTConfig
	Twilio         TwilioConfig

	ICEProviderTimeout    time.Duration
	ICERateLimitPerMinute int

	AuthMode AuthMode
	APIKey   string

	RoomJournalPath string
}

// OriginPolicy returns the origin allow-list as a Policy.
func (c Config) OriginPolicy() origin.Policy {
	return origin.Policy{Allowed: c.AllowedOrigins}
}

// StaticTURNEnabled reports whether TURN URLs come with fixed credentials.
func (c Config) StaticTURNEnabled() bool {
	return len(c.TURNURLs) > 0 && c.TURNUsername != "" && c.TURNCredential != ""
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, _ := lookup(envVarLogFormat)
	envLogFormatSet := strings.TrimSpace(envLogFormat) != ""
	envLogLevel, _ := lookup(envVarLogLevel)
	envLogLevelSet := strings.TrimSpace(envLogLevel) != ""

	listenAddr := envOrDefault(lookup, envVarListenAddr, "")
	if listenAddr == "" {
		if port := envOrDefault(lookup, envVarPort, ""); port != "" {
			listenAddr = net.JoinHostPort("0.0.0.0", strings.TrimSpace(port))
		} else {
			listenAddr = DefaultListenAddr
		}
	}
	publicBaseURL := envOrDefault(lookup, envVarPublicBaseURL, "")
	allowedOriginsStr := envOrDefault(lookup, envVarAllowedOrigins, "")
	iceServersJSON := envOrDefault(lookup, envVarICEServersJSON, "")
	stunURLs := envOrDefault(lookup, envVarSTUNURLs, DefaultSTUNURLs)
	turnURLs := envOrDefault(lookup, envVarTURNURLs, envOrDefault(lookup, envVarTURNURLLegacy, ""))
	turnUsername := envOrDefault(lookup, envVarTURNUsername, envOrDefault(lookup, envVarTURNUserLegacy, ""))
	turnCredential := envOrDefault(lookup, envVarTURNCredential, envOrDefault(lookup, envVarTURNPassLegacy, ""))
	turnRESTSharedSecret := envOrDefault(lookup, envVarTURNRESTSharedSecret, "")
	turnRESTUsernamePrefix := envOrDefault(lookup, envVarTURNRESTUsernamePrefix, DefaultTURNRESTUsernamePrefix)
	twilioAccountSID := envOrDefault(lookup, envVarTwilioAccountSID, "")
	twilioAuthToken := envOrDefault(lookup, envVarTwilioAuthToken, "")
	twilioAPIBaseURL := envOrDefault(lookup, envVarTwilioAPIBaseURL, DefaultTwilioAPIBaseURL)
	authModeStr := envOrDefault(lookup, envVarAuthMode, string(DefaultAuthMode))
	apiKey := envOrDefault(lookup, envVarAPIKey, "")
	roomJournalPath := envOrDefault(lookup, envVarRoomJournalPath, "")

	trustProxy, err := envBoolOrDefault(lookup, envVarTrustProxy, false)
	if err != nil {
		return Config{}, err
	}
	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	wsPingInterval, err := envDurationOrDefault(lookup, envVarWSPingInterval, DefaultWSPingInterval)
	if err != nil {
		return Config{}, err
	}
	wsIdleTimeout, err := envDurationOrDefault(lookup, envVarWSIdleTimeout, DefaultWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	iceProviderTimeout, err := envDurationOrDefault(lookup, envVarICEProviderTimeout, DefaultICEProviderTimeout)
	if err != nil {
		return Config{}, err
	}
	maxSignalingMessageBytes, err := envIntOrDefault(lookup, envVarMaxSignalingMessageBytes, DefaultMaxSignalingMessageBytes)
	if err != nil {
		return Config{}, err
	}
	maxSignalingMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxSignalingMessagesPerSecond, DefaultMaxSignalingMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}
	sendQueueLength, err := envIntOrDefault(lookup, envVarSendQueueLength, DefaultSendQueueLength)
	if err != nil {
		return Config{}, err
	}
	iceRateLimitPerMinute, err := envIntOrDefault(lookup, envVarICERateLimitPerMinute, 0)
	if err != nil {
		return Config{}, err
	}
	turnRESTTTLSeconds, err := envInt64OrDefault(lookup, envVarTURNRESTTTLSeconds, DefaultTURNRESTTTLSeconds)
	if err != nil {
		return Config{}, err
	}
	twilioTokenTTLSeconds, err := envInt64OrDefault(lookup, envVarTwilioTokenTTLSeconds, DefaultTwilioTokenTTLSeconds)
	if err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("meeting-signaling", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
	)

	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "HTTP listen address (host:port; env "+envVarListenAddr+" or "+envVarPort+")")
	fs.StringVar(&publicBaseURL, "public-base-url", publicBaseURL, "Public base URL used to build join links (env "+envVarPublicBaseURL+")")
	fs.StringVar(&allowedOriginsStr, "allowed-origins", allowedOriginsStr, "Comma-separated list of allowed browser origins (env "+envVarAllowedOrigins+")")
	fs.BoolVar(&trustProxy, "trust-proxy", trustProxy, "Use X-Forwarded-For for the client address (env "+envVarTrustProxy+")")
	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod")
	fs.StringVar(&logFormatStr, "log-format", envLogFormat, "Log format: text or json (default depends on mode)")
	fs.StringVar(&logLevelStr, "log-level", envLogLevel, "Log level: debug, info, warn, error (default depends on mode)")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (e.g. 15s)")

	fs.DurationVar(&wsPingInterval, "ws-ping-interval", wsPingInterval, "Liveness probe interval for signaling connections (env "+envVarWSPingInterval+")")
	fs.DurationVar(&wsIdleTimeout, "ws-idle-timeout", wsIdleTimeout, "Close signaling connections with no inbound traffic for this long (env "+envVarWSIdleTimeout+")")
	fs.IntVar(&maxSignalingMessageBytes, "max-signaling-message-bytes", maxSignalingMessageBytes, "Max inbound signaling frame size in bytes (env "+envVarMaxSignalingMessageBytes+")")
	fs.IntVar(&maxSignalingMessagesPerSecond, "max-signaling-messages-per-second", maxSignalingMessagesPerSecond, "Max inbound signaling frames per second per connection (env "+envVarMaxSignalingMessagesPerSecond+")")
	fs.IntVar(&sendQueueLength, "send-queue-length", sendQueueLength, "Outbound frames buffered per connection before dropping (env "+envVarSendQueueLength+")")

	fs.StringVar(&iceServersJSON, "ice-servers-json", iceServersJSON, "Extra ICE servers as JSON (env "+envVarICEServersJSON+")")
	fs.StringVar(&stunURLs, "stun-urls", stunURLs, "Comma-separated STUN URLs (env "+envVarSTUNURLs+")")
	fs.StringVar(&turnURLs, "turn-urls", turnURLs, "Comma-separated TURN URLs (env "+envVarTURNURLs+")")
	fs.StringVar(&turnUsername, "turn-username", turnUsername, "Static TURN username (env "+envVarTURNUsername+")")
	fs.StringVar(&turnCredential, "turn-credential", turnCredential, "Static TURN credential (env "+envVarTURNCredential+")")
	fs.StringVar(&turnRESTSharedSecret, "turn-rest-shared-secret", turnRESTSharedSecret, "TURN REST shared secret (env "+envVarTURNRESTSharedSecret+")")
	fs.Int64Var(&turnRESTTTLSeconds, "turn-rest-ttl-seconds", turnRESTTTLSeconds, "TURN REST credential TTL seconds (env "+envVarTURNRESTTTLSeconds+")")
	fs.StringVar(&turnRESTUsernamePrefix, "turn-rest-username-prefix", turnRESTUsernamePrefix, "TURN REST username prefix (env "+envVarTURNRESTUsernamePrefix+")")
	fs.StringVar(&twilioAccountSID, "twilio-account-sid", twilioAccountSID, "Twilio account SID (env "+envVarTwilioAccountSID+")")
	fs.StringVar(&twilioAuthToken, "twilio-auth-token", twilioAuthToken, "Twilio auth token (env "+envVarTwilioAuthToken+")")
	fs.StringVar(&twilioAPIBaseURL, "twilio-api-base-url", twilioAPIBaseURL, "Twilio API base URL (env "+envVarTwilioAPIBaseURL+")")
	fs.Int64Var(&twilioTokenTTLSeconds, "twilio-token-ttl-seconds", twilioTokenTTLSeconds, "Twilio token TTL seconds (env "+envVarTwilioTokenTTLSeconds+")")
	fs.DurationVar(&iceProviderTimeout, "ice-provider-timeout", iceProviderTimeout, "Timeout for remote ICE credential providers (env "+envVarICEProviderTimeout+")")
	fs.IntVar(&iceRateLimitPerMinute, "ice-rate-limit-per-minute", iceRateLimitPerMinute, "ICE endpoint requests per minute per client address (0 = unlimited; env "+envVarICERateLimitPerMinute+")")
	fs.StringVar(&authModeStr, "auth-mode", authModeStr, "ICE endpoint auth: none or api_key (env "+envVarAuthMode+")")
	fs.StringVar(&apiKey, "api-key", apiKey, "Shared API key when auth-mode=api_key (env "+envVarAPIKey+")")
	fs.StringVar(&roomJournalPath, "room-journal-path", roomJournalPath, "SQLite file for the room activity journal (empty disables; env "+envVarRoomJournalPath+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}
	if !envLogFormatSet && !setFlags["log-format"] {
		logFormatStr = defaultLogFormatForMode(mode)
	}
	if !envLogLevelSet && !setFlags["log-level"] {
		logLevelStr = defaultLogLevelForMode(mode)
	}
	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}
	logLevel, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}
	authMode, err := parseAuthMode(authModeStr)
	if err != nil {
		return Config{}, err
	}

	allowedOrigins, err := parseAllowedOrigins(allowedOriginsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s/--allowed-origins: %w", envVarAllowedOrigins, err)
	}

	if strings.TrimSpace(listenAddr) == "" {
		return Config{}, fmt.Errorf("%s/--listen-addr must not be empty", envVarListenAddr)
	}
	if _, _, err := net.SplitHostPort(listenAddr); err != nil {
		return Config{}, fmt.Errorf("invalid %s/--listen-addr %q: %w", envVarListenAddr, listenAddr, err)
	}
	if publicBaseURL != "" {
		u, err := url.Parse(publicBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Config{}, fmt.Errorf("invalid %s/--public-base-url %q (expected http(s)://host[/path])", envVarPublicBaseURL, publicBaseURL)
		}
		publicBaseURL = strings.TrimRight(publicBaseURL, "/")
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--shutdown-timeout must be > 0", envVarShutdownTimeout)
	}
	if wsPingInterval <= 0 {
		return Config{}, fmt.Errorf("%s/--ws-ping-interval must be > 0", envVarWSPingInterval)
	}
	if wsIdleTimeout <= wsPingInterval {
		return Config{}, fmt.Errorf("%s/--ws-idle-timeout must be greater than %s/--ws-ping-interval", envVarWSIdleTimeout, envVarWSPingInterval)
	}
	if maxSignalingMessageBytes <= 0 {
		return Config{}, fmt.Errorf("%s/--max-signaling-message-bytes must be > 0", envVarMaxSignalingMessageBytes)
	}
	if maxSignalingMessagesPerSecond < 0 {
		return Config{}, fmt.Errorf("%s/--max-signaling-messages-per-second must be >= 0", envVarMaxSignalingMessagesPerSecond)
	}
	if sendQueueLength <= 0 {
		return Config{}, fmt.Errorf("%s/--send-queue-length must be > 0", envVarSendQueueLength)
	}
	if iceRateLimitPerMinute < 0 {
		return Config{}, fmt.Errorf("%s/--ice-rate-limit-per-minute must be >= 0", envVarICERateLimitPerMinute)
	}
	if iceProviderTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--ice-provider-timeout must be > 0", envVarICEProviderTimeout)
	}
	if authMode == AuthModeAPIKey && apiKey == "" {
		return Config{}, fmt.Errorf("%s/--api-key is required when %s=%s", envVarAPIKey, envVarAuthMode, AuthModeAPIKey)
	}

	stunServers, err := ParseSTUNServers(stunURLs)
	if err != nil {
		return Config{}, fmt.Errorf("%s/--stun-urls: %w", envVarSTUNURLs, err)
	}
	if raw := strings.TrimSpace(iceServersJSON); raw != "" {
		extra, err := ParseICEServersJSON(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s/--ice-servers-json: %w", envVarICEServersJSON, err)
		}
		stunServers = append(stunServers, extra...)
	}
	turnURLList, err := ParseTURNURLs(turnURLs)
	if err != nil {
		return Config{}, fmt.Errorf("%s/--turn-urls: %w", envVarTURNURLs, err)
	}
	turnUsername = strings.TrimSpace(turnUsername)
	turnCredential = strings.TrimSpace(turnCredential)
	if (turnUsername == "") != (turnCredential == "") {
		return Config{}, fmt.Errorf("%s and %s must be set together", envVarTURNUsername, envVarTURNCredential)
	}

	turnREST := TurnRESTConfig{
		SharedSecret:   turnRESTSharedSecret,
		TTLSeconds:     turnRESTTTLSeconds,
		UsernamePrefix: strings.TrimSpace(turnRESTUsernamePrefix),
	}
	if turnREST.Enabled() {
		if turnREST.TTLSeconds <= 0 {
			return Config{}, fmt.Errorf("%s/--turn-rest-ttl-seconds must be > 0", envVarTURNRESTTTLSeconds)
		}
		if turnREST.UsernamePrefix == "" || strings.Contains(turnREST.UsernamePrefix, ":") {
			return Config{}, fmt.Errorf("%s/--turn-rest-username-prefix must be non-empty and must not contain ':'", envVarTURNRESTUsernamePrefix)
		}
	}

	twilio := TwilioConfig{
		AccountSID:      strings.TrimSpace(twilioAccountSID),
		AuthToken:       strings.TrimSpace(twilioAuthToken),
		APIBaseURL:      strings.TrimRight(strings.TrimSpace(twilioAPIBaseURL), "/"),
		TokenTTLSeconds: twilioTokenTTLSeconds,
	}
	if (twilio.AccountSID == "") != (twilio.AuthToken == "") {
		return Config{}, fmt.Errorf("%s and %s must be set together", envVarTwilioAccountSID, envVarTwilioAuthToken)
	}
	if twilio.Enabled() {
		if _, err := url.ParseRequestURI(twilio.APIBaseURL); err != nil {
			return Config{}, fmt.Errorf("invalid %s/--twilio-api-base-url %q: %w", envVarTwilioAPIBaseURL, twilio.APIBaseURL, err)
		}
		if twilio.TokenTTLSeconds <= 0 {
			return Config{}, fmt.Errorf("%s/--twilio-token-ttl-seconds must be > 0", envVarTwilioTokenTTLSeconds)
		}
	}

	return Config{
		ListenAddr:     listenAddr,
		PublicBaseURL:  publicBaseURL,
		AllowedOrigins: allowedOrigins,
		TrustProxy:     trustProxy,

		Mode:            mode,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		ShutdownTimeout: shutdownTimeout,

		WSPingInterval:                wsPingInterval,
		WSIdleTimeout:                 wsIdleTimeout,
		MaxSignalingMessageBytes:      int64(maxSignalingMessageBytes),
		MaxSignalingMessagesPerSecond: maxSignalingMessagesPerSecond,
		SendQueueLength:               sendQueueLength,

		STUNServers:    stunServers,
		TURNURLs:       turnURLList,
		TURNUsername:   turnUsername,
		TURNCredential: turnCredential,
		TURNREST:       turnREST,
		Twilio:         twilio,

		ICEProviderTimeout:    iceProviderTimeout,
		ICERateLimitPerMinute: iceRateLimitPerMinute,

		AuthMode: authMode,
		APIKey:   apiKey,

		RoomJournalPath: strings.TrimSpace(roomJournalPath),
	}, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envInt64OrDefault(lookup func(string) (string, bool), key string, fallback int64) (int64, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envBoolOrDefault(lookup func(string) (string, bool), key string, fallback bool) (bool, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode Mode) string {
	if mode == ModeProd {
		return string(LogFormatJSON)
	}
	return string(LogFormatText)
}

func defaultLogLevelForMode(mode Mode) string {
	if mode == ModeProd {
		return "info"
	}
	return "debug"
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func parseAuthMode(raw string) (AuthMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(AuthModeNone), "":
		return AuthModeNone, nil
	case string(AuthModeAPIKey):
		return AuthModeAPIKey, nil
	default:
		return "", fmt.Errorf("invalid %s %q (expected %s or %s)", envVarAuthMode, raw, AuthModeNone, AuthModeAPIKey)
	}
}

func parseAllowedOrigins(raw string) ([]string, error) {
	var out []string
	for _, entry := range splitCommaSeparated(raw) {
		if entry == origin.Wildcard {
			out = append(out, entry)
			continue
		}
		normalized, _, ok := origin.NormalizeHeader(entry)
		if !ok {
			return nil, fmt.Errorf("invalid origin %q (expected full origin like https://example.com)", entry)
		}
		out = append(out, normalized)
	}
	return out, nil
}
