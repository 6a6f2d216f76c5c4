// Misc commands (PING) and small formatting helpers shared across the
// apply_*.go files. Grounded on server/server.go's ping handling.
package command

import (
	"math"
	"strconv"

	"myredis/internal/resp"
	"myredis/internal/store"
)

func init() {
	registerRead("ping", cmdPing)
}

func cmdPing(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) > 2 {
		return errArity("ping")
	}
	if len(args) == 2 {
		return resp.MakeBulkReply(args[1])
	}
	return resp.PongReply
}

// formatFloat renders a float the way INCRBYFLOAT/ZSCORE need: shortest
// decimal round-trip, no exponent notation, trailing zeros trimmed, with
// the inf/-inf/nan literals 'f' never produces.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}
