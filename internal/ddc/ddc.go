// Package ddc is the library-embedding entry point: Init/LastError, plus
// the context-carried request id that scopes "last error detail" to one
// caller.
//
// Go has no thread-local storage, so per-caller error state is modelled as
// a context.Context value instead: a caller that wants isolated error
// state creates a request-scoped context via NewRequestContext and threads
// it through every call, exactly the way internal/log.WithSink threads a
// request-scoped logging sink.
package ddc

import (
	"context"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"

	"github.com/VictorQueiroz/ddcutil/internal/ddc/model"
	"github.com/VictorQueiroz/ddcutil/internal/log"
)

var (
	initMu           sync.Mutex
	initialised      bool
	lastErrorsGlobal sync.Map // map[requestID]*model.ErrorInfo, plus a "" key for callers with no request context

	// Options an embedding application may pass to Init. EnableUSB mirrors
	// --enable-usb; the dynamic-sleep pair mirrors the CLI's
	// --enable/--disable-dynamic-sleep controls.
	initOptions struct {
		EnableUSB           bool
		DisableDynamicSleep bool
	}
)

// syslog severity levels per RFC 5424, the numbering Init's syslogLevel
// argument uses.
const (
	syslogError   = 3
	syslogWarning = 4
	syslogInfo    = 6
	syslogDebug   = 7
)

// Init performs one-time library setup: parsing optionsString (a
// space-separated flag string) and setting the internal log package's
// verbosity from syslogLevel. An unrecognised option is a configuration
// error, not silently ignored. Calling Init twice returns a
// StatusAlreadyInitialised error rather than silently re-running setup.
func Init(optionsString string, syslogLevel int) *model.ErrorInfo {
	initMu.Lock()
	defer initMu.Unlock()
	if initialised {
		return model.New(model.StatusAlreadyInitialised, "ddc.Init", "library already initialised")
	}

	for _, opt := range strings.Fields(optionsString) {
		switch opt {
		case "--enable-usb":
			initOptions.EnableUSB = true
		case "--disable-dynamic-sleep":
			initOptions.DisableDynamicSleep = true
		case "--enable-dynamic-sleep":
			initOptions.DisableDynamicSleep = false
		default:
			return model.New(model.StatusBadConfigurationFile, "ddc.Init", "unrecognised option "+opt)
		}
	}

	switch {
	case syslogLevel >= syslogDebug:
		log.SetLevel(charmlog.DebugLevel)
	case syslogLevel >= syslogInfo:
		log.SetLevel(charmlog.InfoLevel)
	case syslogLevel >= syslogWarning:
		log.SetLevel(charmlog.WarnLevel)
	case syslogLevel >= syslogError:
		log.SetLevel(charmlog.ErrorLevel)
	}

	initialised = true
	return nil
}

type requestIDKey struct{}

// NewRequestContext returns a context carrying a fresh request id, so
// LastError calls made with it don't race with other concurrent callers'
// error state. Library embedders that only ever call from one goroutine at
// a time can skip this and use context.Background(): LastError falls back
// to a shared slot keyed by the empty request id.
func NewRequestContext(parent context.Context, requestID string) context.Context {
	return context.WithValue(parent, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RecordError stores err as the most recent error for ctx's request id,
// for later retrieval via LastError. Called by the CLI and by any embedder
// wrapping library calls that want LastError to reflect what just failed.
func RecordError(ctx context.Context, err *model.ErrorInfo) {
	lastErrorsGlobal.Store(requestIDFrom(ctx), err)
}

// LastError returns the most recently recorded error for ctx's request id,
// or nil if none has been recorded yet.
func LastError(ctx context.Context) *model.ErrorInfo {
	v, ok := lastErrorsGlobal.Load(requestIDFrom(ctx))
	if !ok {
		return nil
	}
	info, _ := v.(*model.ErrorInfo)
	return info
}
