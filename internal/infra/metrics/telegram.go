package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		usersRegisteredTotal,
		telegramUpdatesTotal,
		telegramRateLimitedTotal,
		telegramCallbackAckFailedTotal,
		telegramHandlerPanicsTotal,
	)
}

var (
	usersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of bot users seen for the first time.",
		},
	)

	telegramUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Incoming commands, callbacks and free-text messages by route.",
		},
		[]string{"route"},
	)

	telegramRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of updates dropped by the per-user rate limit.",
		},
	)

	telegramCallbackAckFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_callback_ack_failed_total",
			Help: "Callback acknowledgements that failed or timed out.",
		},
	)

	telegramHandlerPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_handler_panics_total",
			Help: "Update handlers that panicked and were recovered.",
		},
	)
)

func IncUsersRegistered()       { usersRegisteredTotal.Inc() }
func IncRateLimitTriggered()    { telegramRateLimitedTotal.Inc() }
func IncCallbackAckFailed()     { telegramCallbackAckFailedTotal.Inc() }
func IncHandlerPanic()          { telegramHandlerPanicsTotal.Inc() }
func IncTelegramRoute(r string) { telegramUpdatesTotal.WithLabelValues(norm(r)).Inc() }
