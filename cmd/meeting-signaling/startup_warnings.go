package main

import (
	"log/slog"

	"github.com/medicox/meeting-signaling/internal/config"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.AuthMode == config.AuthModeNone {
		logger.Warn("startup security warning: AUTH_MODE=none leaves the ICE server endpoints (and any TURN credentials they mint) unauthenticated",
			"warning_code", "auth_mode_none",
			"auth_mode", cfg.AuthMode,
			"mode", cfg.Mode,
		)
	}

	if cfg.OriginPolicy().AllowsAny() {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	turnConfigured := cfg.Twilio.Enabled() || cfg.StaticTURNEnabled() || (cfg.TURNREST.Enabled() && len(cfg.TURNURLs) > 0)
	if cfg.TURNREST.Enabled() && len(cfg.TURNURLs) == 0 {
		logger.Warn("startup warning: TURN_REST_SHARED_SECRET is set but TURN_URLS is empty, so no TURN REST credentials will be issued",
			"warning_code", "turn_rest_without_urls",
			"mode", cfg.Mode,
		)
	}
	if cfg.Mode == config.ModeProd && !turnConfigured {
		logger.Warn("startup warning: no TURN source configured while --mode=prod (clients behind symmetric NATs will fail to connect)",
			"warning_code", "stun_only_in_prod",
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.ICERateLimitPerMinute <= 0 && cfg.AuthMode == config.AuthModeNone {
		logger.Warn("startup security warning: ICE_RATE_LIMIT_PER_MINUTE is unset/0 (unlimited) while --mode=prod without auth",
			"warning_code", "ice_rate_limit_unlimited_in_prod",
			"ice_rate_limit_per_minute", cfg.ICERateLimitPerMinute,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.MaxSignalingMessagesPerSecond <= 0 {
		logger.Warn("startup security warning: MAX_SIGNALING_MESSAGES_PER_SECOND is unset/0 (unlimited) while --mode=prod",
			"warning_code", "signaling_rate_limit_unlimited_in_prod",
			"mode", cfg.Mode,
		)
	}

	// SDP blobs rarely exceed a few KiB.
	if cfg.MaxSignalingMessageBytes > 1<<20 { // 1MiB
		logger.Warn("startup security warning: MAX_SIGNALING_MESSAGE_BYTES is very large (increases per-message allocation risk)",
			"warning_code", "signaling_max_message_large",
			"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
			"mode", cfg.Mode,
		)
	}

	if cfg.TrustProxy && cfg.ICERateLimitPerMinute > 0 {
		logger.Warn("startup security warning: TRUST_PROXY=true keys ICE rate limits on X-Forwarded-For (spoofable unless a proxy overwrites it)",
			"warning_code", "trust_proxy_rate_limit",
			"ice_rate_limit_per_minute", cfg.ICERateLimitPerMinute,
			"mode", cfg.Mode,
		)
	}
}
