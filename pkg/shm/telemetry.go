/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/srediag/sysvshm/pkg/shm"

type telemetry struct {
	tracer trace.Tracer
	ops    metric.Int64Counter
}

func newTelemetry(meter metric.Meter, tracer trace.Tracer) (*telemetry, error) {
	ops, err := meter.Int64Counter("sysvshm.operations",
		metric.WithDescription("Shared memory operations by result."),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}
	return &telemetry{tracer: tracer, ops: ops}, nil
}

// start opens the span of one operation. The returned func records the outcome.
func (t *telemetry) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := t.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		result := "ok"
		if err := *errp; err != nil {
			result = KindOf(err).String()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		t.ops.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("result", result),
		))
		span.End()
	}
}
