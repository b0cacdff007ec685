package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vxray_runs_total",
		Help: "Total number of pipeline runs, by terminal status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vxray_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vxray_frames_extracted_total",
		Help: "Total number of frames sampled out of input videos",
	})

	FramesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vxray_frames_processed_total",
		Help: "Total number of fan-out frame items processed, by outcome",
	}, []string{"outcome"})

	CelebritiesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vxray_celebrities_detected_total",
		Help: "Total number of celebrity detections across all frames",
	})

	ActiveFrameWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vxray_active_frame_workers",
		Help: "Number of fan-out branches currently in flight",
	})

	FrameRetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vxray_frame_retry_total",
		Help: "Total number of per-frame retries",
	}, []string{"attempt"})
)
