package http

import (
	"github.com/timeclock-api/internal/application/timeclock"
	jwtinfra "github.com/timeclock-api/internal/infrastructure/jwt"
	"github.com/timeclock-api/internal/notify"
	"github.com/timeclock-api/internal/pkg/clock"
	"github.com/timeclock-api/internal/pkg/keymutex"
)

// Deps holds all infrastructure dependencies for the router. Locks must be
// the instance shared with the overtime monitor so HTTP clock-outs and
// monitor flag-sets serialize per user.
type Deps struct {
	Store       timeclock.SessionStore
	Sink        notify.Sink
	Clock       clock.Clock
	Locks       *keymutex.KeyedMutex
	JWTProvider *jwtinfra.Provider
}
