// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package metrics

import (
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	m := &dto.Metric{}
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	metric := <-ch
	_ = metric.Write(m)
	return m.GetCounter().GetValue()
}

func TestObserveIngestStageSuccess(t *testing.T) {
	before := counterValue(t, IngestStageCompleted.WithLabelValues("hashed"))
	ObserveIngestStage("hashed", nil)
	after := counterValue(t, IngestStageCompleted.WithLabelValues("hashed"))
	assert.Equal(t, before+1, after)
}

func TestObserveIngestStageFailure(t *testing.T) {
	err := errors.New("boom")
	before := counterValue(t, IngestStageFailed.WithLabelValues("copied", err.Error()))
	ObserveIngestStage("copied", err)
	after := counterValue(t, IngestStageFailed.WithLabelValues("copied", err.Error()))
	assert.Equal(t, before+1, after)
}

func TestObserveCoordinatorTaskRecordsError(t *testing.T) {
	before := counterValue(t, CoordinatorTaskErrors.WithLabelValues("batch", "flush-content-store"))
	ObserveCoordinatorTask("batch", "flush-content-store", 10*time.Millisecond, errors.New("fail"))
	after := counterValue(t, CoordinatorTaskErrors.WithLabelValues("batch", "flush-content-store"))
	assert.Equal(t, before+1, after)
}
