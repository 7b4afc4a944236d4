package retry

import "time"

// Strategy is the recommended reaction to a classified error.
type Strategy struct {
	ShouldRetry      bool
	RetryDelay       time.Duration
	MaxRetries       int
	UserMessage      string
	TechnicalMessage string
}

var strategies = map[ErrorCategory]Strategy{
	CategoryConnection: {
		ShouldRetry:      true,
		RetryDelay:       2 * time.Second,
		MaxRetries:       5,
		UserMessage:      "We're having trouble reaching our database. Please try again shortly.",
		TechnicalMessage: "database connection failed: check the host, port and that the server is accepting connections",
	},
	CategoryAuthentication: {
		ShouldRetry:      false,
		UserMessage:      "The service is temporarily unavailable. Please contact support if this continues.",
		TechnicalMessage: "database authentication failed: verify the username and password in DATABASE_URL",
	},
	CategoryTimeout: {
		ShouldRetry:      true,
		RetryDelay:       1 * time.Second,
		MaxRetries:       3,
		UserMessage:      "The request took too long to complete. Please try again.",
		TechnicalMessage: "database operation timed out: the server may be overloaded or unreachable",
	},
	CategoryValidation: {
		ShouldRetry:      false,
		UserMessage:      "The request could not be processed.",
		TechnicalMessage: "invalid database configuration or input: correct the value before retrying",
	},
	CategoryUnknown: {
		ShouldRetry:      true,
		RetryDelay:       1 * time.Second,
		MaxRetries:       2,
		UserMessage:      "Something went wrong. Please try again later.",
		TechnicalMessage: "unclassified database error",
	},
}

// StrategyFor returns the handling strategy for the error's category.
func StrategyFor(err *ClassifiedError) Strategy {
	if err == nil {
		return strategies[CategoryUnknown]
	}
	if s, ok := strategies[err.Category]; ok {
		return s
	}
	return strategies[CategoryUnknown]
}

// UserMessage translates a classified error for display. Production callers get a
// generic sentence that leaks nothing about the infrastructure; everyone else gets
// the raw technical message.
func UserMessage(err *ClassifiedError, production bool) string {
	if err == nil {
		return ""
	}
	if production {
		return StrategyFor(err).UserMessage
	}
	return err.Message
}
