package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"tasktrack/internal/logs"
	"tasktrack/internal/models"
)

// Fail пишет ошибку клиенту; 5xx дополнительно уходит в лог с reqid.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	if models.StatusFor(err) == http.StatusInternalServerError {
		logs.Logger.WithFields(logrus.Fields{
			"reqid":   GetRequestID(r),
			"user_id": GetUserID(r),
			"uri":     r.RequestURI,
		}).Errorf("request failed: %v", err)
	}
	models.WriteError(w, err)
}
