// Package runner executes the mapped-data kernels on an OCCA device. A
// Runner bakes one problem shape (dimension, degree, variables, elements and
// owning rank) into generated OKL, compiles kernels on first use and keeps
// their device buffers pooled by argument name.
package runner

import (
	"fmt"
	"unsafe"

	"github.com/notargets/SEKernel/config"
	"github.com/notargets/SEKernel/field"
	"github.com/notargets/SEKernel/index"
	"github.com/notargets/SEKernel/runner/builder"
	"github.com/notargets/SEKernel/utils"
	"github.com/notargets/gocca"
	"go.uber.org/zap"
)

// ActionFlags represents the memory operations to perform for a parameter
type ActionFlags int

const (
	// No action
	NoAction ActionFlags = 0
	// Copy from host to device before kernel execution
	CopyTo ActionFlags = 1 << iota
	// Copy from device to host after kernel execution
	CopyBack
	// Bidirectional copy (CopyTo | CopyBack)
	Copy = CopyTo | CopyBack
)

// Runner orchestrates kernel compilation and execution
type Runner struct {
	*builder.Builder
	Device       *gocca.OCCADevice
	Kernels      map[string]*gocca.OCCAKernel
	PooledMemory map[string]*gocca.OCCAMemory
	Logger       *zap.Logger

	pooledBytes map[string]int64
	ownsDevice  bool
}

// NewRunner creates a new Runner instance. A nil logger discards output.
func NewRunner(device *gocca.OCCADevice, cfg builder.Config, logger *zap.Logger) *Runner {
	if device == nil {
		panic("runner needs a device")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	kr := &Runner{
		Builder:      builder.NewBuilder(cfg),
		Device:       device,
		Kernels:      make(map[string]*gocca.OCCAKernel),
		PooledMemory: make(map[string]*gocca.OCCAMemory),
		Logger:       logger,
		pooledBytes:  make(map[string]int64),
	}
	kr.Logger.Info("runner created",
		zap.String("mode", device.Mode()),
		zap.Int("dim", kr.Dim),
		zap.Int("n", kr.N),
		zap.Int("nvar", kr.NVar),
		zap.Int("nel", kr.NEl))
	return kr
}

// Open creates the device named by cfg.Device.Props, falling back through the
// available backends when it is empty, and a Runner for the configured mesh
// and rank. Free releases the device too.
func Open(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	device, err := utils.CreateDevice(cfg.Device.Props, logger)
	if err != nil {
		return nil, err
	}
	kr := NewRunner(device, cfg.RunnerConfig(), logger)
	kr.ownsDevice = true
	return kr, nil
}

// BuildKernel compiles and registers a kernel with the program
func (kr *Runner) BuildKernel(kernelSource, kernelName string) (*gocca.OCCAKernel, error) {
	kr.GeneratePreamble()

	// Combine preamble with kernel source
	fullSource := kr.KernelPreamble + "\n" + kernelSource

	var kernel *gocca.OCCAKernel
	var err error

	if kr.Device.Mode() == "OpenMP" {
		// Workaround for OCCA bug: OpenMP doesn't get default -O3 flag
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = kr.Device.BuildKernelFromString(fullSource, kernelName, props)
	} else {
		kernel, err = kr.Device.BuildKernelFromString(fullSource, kernelName, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", kernelName, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", kernelName)
	}
	kr.Kernels[kernelName] = kernel
	kr.Logger.Info("kernel built", zap.String("kernel", kernelName), zap.String("mode", kr.Device.Mode()))
	return kernel, nil
}

// Kernel returns the compiled kernel for op, building it on first use.
func (kr *Runner) Kernel(op Op, kind index.Kind, boundary bool) (*gocca.OCCAKernel, error) {
	name := KernelName(op, kind, boundary)
	if k, ok := kr.Kernels[name]; ok {
		return k, nil
	}
	src, err := kr.KernelSource(op, kind, boundary)
	if err != nil {
		return nil, err
	}
	return kr.BuildKernel(src, name)
}

// Free releases all resources
func (kr *Runner) Free() {
	for _, kernel := range kr.Kernels {
		kernel.Free()
	}
	for _, mem := range kr.PooledMemory {
		mem.Free()
	}
	kr.Kernels = make(map[string]*gocca.OCCAKernel)
	kr.PooledMemory = make(map[string]*gocca.OCCAMemory)
	kr.pooledBytes = make(map[string]int64)
	if kr.ownsDevice {
		kr.Device.Free()
		kr.ownsDevice = false
	}
}

// pooled returns the device buffer registered under name, reallocating it
// when the requested size changes.
func (kr *Runner) pooled(name string, bytes int64) *gocca.OCCAMemory {
	if mem, ok := kr.PooledMemory[name]; ok {
		if kr.pooledBytes[name] == bytes {
			return mem
		}
		mem.Free()
	}
	mem := kr.Device.Malloc(bytes, nil, nil)
	kr.PooledMemory[name] = mem
	kr.pooledBytes[name] = bytes
	return mem
}

// param is one device argument bound to host memory.
type param struct {
	name    string
	ptr     unsafe.Pointer
	bytes   int64
	actions ActionFlags
}

func fieldParam[T field.Real](name string, f *field.Field[T], actions ActionFlags) param {
	var zero T
	return param{
		name:    name,
		ptr:     unsafe.Pointer(&f.Data[0]),
		bytes:   int64(len(f.Data)) * int64(unsafe.Sizeof(zero)),
		actions: actions,
	}
}

func intParam(name string, data []int32, actions ActionFlags) param {
	return param{
		name:    name,
		ptr:     unsafe.Pointer(&data[0]),
		bytes:   int64(len(data)) * 4,
		actions: actions,
	}
}

// run copies inputs to the device, launches kernel and copies outputs back.
func (kr *Runner) run(kernel *gocca.OCCAKernel, params ...param) error {
	args := make([]interface{}, len(params))
	for n, p := range params {
		mem := kr.pooled(p.name, p.bytes)
		if p.actions&CopyTo != 0 {
			mem.CopyFrom(p.ptr, p.bytes)
		}
		args[n] = mem
	}
	if err := kernel.RunWithArgs(args...); err != nil {
		return fmt.Errorf("kernel execution failed: %w", err)
	}
	kr.Device.Finish()
	for _, p := range params {
		if p.actions&CopyBack != 0 {
			kr.PooledMemory[p.name].CopyTo(p.ptr, p.bytes)
		}
	}
	return nil
}

// checkPrecision rejects host element types that differ from the baked
// real_t.
func checkPrecision[T field.Real](kr *Runner) error {
	var zero T
	if int(unsafe.Sizeof(zero)) != kr.GetFloatSize() {
		return fmt.Errorf("%w: host values are %d bytes, device real_t is %d",
			field.ErrShape, unsafe.Sizeof(zero), kr.GetFloatSize())
	}
	return nil
}
