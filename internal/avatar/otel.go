package avatar

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/rigsync/internal/avatar"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
