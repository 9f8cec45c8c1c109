package core

import "sync"

const AVG_COUNT uint8 = 30

// Rolling statistics over graph compilations. One compile happens per frame,
// so the average window doubles as a frame-time window.
type MetricsState struct {
	CompileAVGCounter    uint8
	MStimes              [AVG_COUNT]float64
	MSavg                float64
	Compiles             int32
	AccumulatedCompileMS float64
	CompilesPerSecond    float64

	Passes       int32
	Blocks       int32
	Subpasses    int32
	Dependencies int32
	Attachments  int32
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes: [AVG_COUNT]float64{0},
		}
	})
	return nil
}

// Records the timing of one compilation run.
func MetricsCompileUpdate(compile_elapsed_time float64) {
	if metricsState == nil {
		return
	}
	compile_ms := (compile_elapsed_time * 1000.0)
	metricsState.MStimes[metricsState.CompileAVGCounter] = compile_ms
	if metricsState.CompileAVGCounter == AVG_COUNT-1 {
		metricsState.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			metricsState.MSavg += metricsState.MStimes[i]
		}

		metricsState.MSavg /= float64(AVG_COUNT)
	}
	metricsState.CompileAVGCounter++
	metricsState.CompileAVGCounter %= AVG_COUNT

	metricsState.AccumulatedCompileMS += compile_ms
	if metricsState.AccumulatedCompileMS > 1000 {
		metricsState.CompilesPerSecond = float64(metricsState.Compiles)
		metricsState.AccumulatedCompileMS -= 1000
		metricsState.Compiles = 0
	}

	metricsState.Compiles++
}

// Records the shape of the last compiled graph.
func MetricsGraphUpdate(passes, blocks, subpasses, dependencies, attachments int) {
	if metricsState == nil {
		return
	}
	metricsState.Passes = int32(passes)
	metricsState.Blocks = int32(blocks)
	metricsState.Subpasses = int32(subpasses)
	metricsState.Dependencies = int32(dependencies)
	metricsState.Attachments = int32(attachments)
}

func MetricsCompileTime() float64 {
	return metricsState.MSavg
}

func MetricsGraphShape() (passes, blocks, subpasses, dependencies, attachments int32) {
	return metricsState.Passes, metricsState.Blocks, metricsState.Subpasses,
		metricsState.Dependencies, metricsState.Attachments
}
