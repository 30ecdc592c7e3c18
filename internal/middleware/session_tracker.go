package middleware

import (
	"context"
	"net/http"

	"github.com/mwhitfield/vigil/internal/auth"
	"github.com/mwhitfield/vigil/internal/models"
	pkghttp "github.com/mwhitfield/vigil/pkg/http"
)

// SessionUpserter is the slice of the session service this middleware needs
type SessionUpserter interface {
	UpsertCurrent(ctx context.Context, accountID, email string, origin models.Origin) (*models.Session, error)
}

// SessionTracker refreshes the device registry on each authenticated
// request: the requesting device becomes the account's current session
// and its last-active time moves forward. Registry failures never fail
// the request; the service logs them.
func SessionTracker(sessions SessionUpserter, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims := auth.GetClaimsFromContext(r); claims != nil {
				origin := models.Origin{
					IPAddress: pkghttp.ExtractClientIP(r, ipConfig),
					UserAgent: r.UserAgent(),
				}
				_, _ = sessions.UpsertCurrent(r.Context(), claims.AccountID, claims.Email, origin)
			}

			next.ServeHTTP(w, r)
		})
	}
}
