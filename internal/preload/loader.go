package preload

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/buffer"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/process"
	"github.com/dop251/goja_nodejs/require"
	"github.com/dop251/goja_nodejs/url"
	"github.com/dop251/goja_nodejs/util"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

var ErrNotAFunction = errors.New("default export is not a function")

// EntryFunc invokes the default export of a loaded module with an error
// callback and a success callback receiving the preloaded path.
type EntryFunc func(onError func(msg string), onSuccess func(path string)) error

// ModuleLoader compiles bundle source into an invokable module.
type ModuleLoader interface {
	Load(ctx context.Context, filename, src string) (EntryFunc, error)
}

// GojaLoader evaluates CommonJS bundles in a goja runtime with its own node
// style event loop per load. The builtins in hostModules resolve, fs reads and
// writes the host filesystem, every other require fails.
type GojaLoader struct {
	log zerolog.Logger
	fs  afero.Fs
}

type LoaderOption func(*GojaLoader)

// WithHostFS sets the filesystem behind the fs module, the OS filesystem by default.
func WithHostFS(fs afero.Fs) LoaderOption {
	return func(l *GojaLoader) {
		l.fs = fs
	}
}

func NewGojaLoader(log zerolog.Logger, opts ...LoaderOption) *GojaLoader {
	l := &GojaLoader{
		log: log,
		fs:  afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load evaluates src and waits for the timers and callbacks it schedules.
// Nothing is left running when Load returns, an EntryFunc that is never
// invoked can simply be dropped.
func (l *GojaLoader) Load(ctx context.Context, filename, src string) (EntryFunc, error) {
	registry := require.NewRegistry(require.WithLoader(noSourceFiles))
	loop := eventloop.NewEventLoop(eventloop.WithRegistry(registry), eventloop.EnableConsole(false))

	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(logPrinter{
		log: l.log.With().Str("module", filename).Logger(),
	}))
	registry.RegisterNativeModule(util.ModuleName, util.Require)
	registry.RegisterNativeModule(buffer.ModuleName, buffer.Require)
	registry.RegisterNativeModule(process.ModuleName, process.Require)
	registry.RegisterNativeModule(url.ModuleName, url.Require)
	registry.RegisterNativeModule("fs", fsModule(loop, l.fs))
	registry.RegisterNativeModule("path", pathModule)

	m := &gojaModule{loop: loop, filename: filename}
	loop.Run(func(vm *goja.Runtime) {
		m.vm = vm
	})

	err := m.run(ctx, func(vm *goja.Runtime) error {
		console.Enable(vm)
		buffer.Enable(vm)
		process.Enable(vm)
		url.Enable(vm)

		m.module = vm.NewObject()
		exports := vm.NewObject()
		if err := m.module.Set("exports", exports); err != nil {
			return err
		}

		wrapper, err := vm.RunScript(filename, "(function (exports, require, module, __filename, __dirname) {"+src+"\n})")
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", filename, err)
		}

		fn, ok := goja.AssertFunction(wrapper)
		if !ok {
			return fmt.Errorf("failed to compile %s: module wrapper is not callable", filename)
		}

		_, err = fn(goja.Undefined(), exports, vm.ToValue(requireFunc(vm)), m.module, vm.ToValue(filename), vm.ToValue("/"))
		if err != nil {
			return fmt.Errorf("failed to evaluate %s: %w", filename, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return func(onError func(string), onSuccess func(string)) error {
		return m.invoke(ctx, onError, onSuccess)
	}, nil
}

// gojaModule is an evaluated bundle and the loop it runs on.
type gojaModule struct {
	loop     *eventloop.EventLoop
	vm       *goja.Runtime
	module   *goja.Object
	filename string
}

// run calls fn on the loop and returns once every job it scheduled has
// completed, or ctx is done.
func (m *gojaModule) run(ctx context.Context, fn func(*goja.Runtime) error) error {
	stop := interruptOnDone(ctx, m.vm, m.loop)
	defer stop()

	var err error
	m.loop.Run(func(vm *goja.Runtime) {
		err = fn(vm)
	})
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("%s: %w", m.filename, ctx.Err())
	}
	return err
}

func (m *gojaModule) invoke(ctx context.Context, onError func(string), onSuccess func(string)) error {
	var ret goja.Value
	err := m.run(ctx, func(vm *goja.Runtime) error {
		entry, ok := goja.AssertFunction(defaultExport(m.module))
		if !ok {
			return fmt.Errorf("%s: %w", m.filename, ErrNotAFunction)
		}

		var err error
		ret, err = entry(goja.Undefined(),
			vm.ToValue(func(call goja.FunctionCall) goja.Value {
				onError(formatArgs(call.Arguments))
				return goja.Undefined()
			}),
			vm.ToValue(func(call goja.FunctionCall) goja.Value {
				onSuccess(call.Argument(0).String())
				return goja.Undefined()
			}),
		)
		if err != nil {
			return fmt.Errorf("%s: %w", m.filename, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// async default exports report failures through the returned promise
	if p, ok := ret.Export().(*goja.Promise); ok && p.State() == goja.PromiseStateRejected {
		return fmt.Errorf("%s: default export rejected: %s", m.filename, formatArgs([]goja.Value{p.Result()}))
	}
	return nil
}

// defaultExport returns module.exports.default, undefined when exports is not an object.
func defaultExport(module *goja.Object) goja.Value {
	exported := module.Get("exports")
	if exported == nil || goja.IsUndefined(exported) || goja.IsNull(exported) {
		return goja.Undefined()
	}
	obj, ok := exported.(*goja.Object)
	if !ok {
		return goja.Undefined()
	}
	return obj.Get("default")
}

func requireFunc(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if builtin := strings.TrimPrefix(name, "node:"); slices.Contains(hostModules, builtin) {
			return require.Require(vm, builtin)
		}
		err := vm.NewGoError(fmt.Errorf("Cannot find module '%s'", name)) //nolint:staticcheck
		_ = err.Set("code", "MODULE_NOT_FOUND")
		panic(err)
	}
}

// noSourceFiles keeps require from reading modules off disk.
func noSourceFiles(string) ([]byte, error) {
	return nil, require.ModuleFileDoesNotExistError
}

// logPrinter sends console output to the logger.
type logPrinter struct {
	log zerolog.Logger
}

func (p logPrinter) Log(s string)   { p.log.Info().Msg(s) }
func (p logPrinter) Warn(s string)  { p.log.Warn().Msg(s) }
func (p logPrinter) Error(s string) { p.log.Error().Msg(s) }

func formatArgs(args []goja.Value) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if obj, ok := arg.(*goja.Object); ok {
			if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
				parts = append(parts, stack.String())
				continue
			}
		}
		parts = append(parts, arg.String())
	}
	return strings.Join(parts, " ")
}

// interruptOnDone interrupts running code and stops the loop when ctx is done,
// stop releases the watcher.
func interruptOnDone(ctx context.Context, vm *goja.Runtime, loop *eventloop.EventLoop) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
			loop.StopNoWait()
		case <-done:
		}
	}()

	return func() {
		close(done)
	}
}
