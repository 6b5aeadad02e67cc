package client

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/WhileEndless/go-requests/pkg/constants"
	"github.com/WhileEndless/go-requests/pkg/errors"
	"github.com/WhileEndless/go-requests/pkg/tlsconfig"
	"github.com/WhileEndless/go-requests/pkg/transport"
)

// validate is shared by every Client; validator caches struct metadata.
var validate = validator.New()

// Options controls how the Client establishes connections and reads responses.
type Options struct {
	ConnTimeout  time.Duration `validate:"gte=0"`
	ReadTimeout  time.Duration `validate:"gte=0"` // 0 = no deadline
	WriteTimeout time.Duration `validate:"gte=0"` // 0 = no deadline

	// Redirects are followed while the response carries a Location header,
	// up to MaxRedirects hops.
	FollowRedirects bool
	MaxRedirects    int `validate:"gte=0,lte=100"`

	UserAgent string `validate:"required,printascii"`

	// MaxHeaderBytes caps the status line plus header block of one response.
	MaxHeaderBytes int `validate:"gte=1024"`

	// BodyMemLimit is the default in-memory limit for Handle.ReadAll.
	BodyMemLimit int64 `validate:"gte=0"`

	// TLS
	InsecureTLS   bool
	ServerName    string   `validate:"omitempty,hostname_rfc1123"`
	CustomCACerts [][]byte // PEM encoded root CAs added to the system pool
	TLSProfile    *tlsconfig.VersionProfile `validate:"-"`

	// TLSConfig is used as is (only ServerName is filled in) when set.
	TLSConfig *tls.Config `json:"-" validate:"-"`

	Logger *slog.Logger `json:"-" validate:"-"`
}

// DefaultOptions returns the options used by New when none are given.
func DefaultOptions() Options {
	return Options{
		ConnTimeout:     constants.DefaultConnTimeout,
		ReadTimeout:     constants.DefaultReadTimeout,
		WriteTimeout:    constants.DefaultWriteTimeout,
		FollowRedirects: true,
		MaxRedirects:    constants.DefaultMaxRedirects,
		UserAgent:       constants.DefaultUserAgent,
		MaxHeaderBytes:  constants.DefaultMaxHeaderBytes,
		BodyMemLimit:    constants.DefaultBodyMemLimit,
	}
}

// Validate checks the options against their constraints.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.NewValidationError("invalid client options: " + err.Error())
	}
	return nil
}

func (o Options) transportConfig() transport.Config {
	tlsCfg := tlsconfig.Config{
		ServerName:         o.ServerName,
		InsecureSkipVerify: o.InsecureTLS,
		RootCAs:            o.CustomCACerts,
		Base:               o.TLSConfig,
	}
	if o.TLSProfile != nil {
		tlsCfg.Profile = *o.TLSProfile
	}
	return transport.Config{
		ConnTimeout:  o.ConnTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		TLS:          tlsCfg,
		Logger:       o.Logger,
	}
}
