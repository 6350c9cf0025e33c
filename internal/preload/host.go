package preload

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/spf13/afero"
)

// hostModules are the node builtins a preload bundle may require, with or
// without the node: prefix.
var hostModules = []string{"buffer", "console", "fs", "path", "process", "url", "util"}

// fsOp performs an fs call, returning the value or the error object to throw.
type fsOp func(goja.FunctionCall) (goja.Value, *goja.Object)

// fsModule exposes the subset of node's fs used by preload bundles, backed by hostFS.
// Callback and promise variants complete on the event loop so the run waits for them.
func fsModule(loop *eventloop.EventLoop, hostFS afero.Fs) require.ModuleLoader {
	return func(vm *goja.Runtime, module *goja.Object) {
		exports := module.Get("exports").(*goja.Object)

		readFile := func(call goja.FunctionCall) (goja.Value, *goja.Object) {
			name := call.Argument(0).String()
			data, err := afero.ReadFile(hostFS, name)
			if err != nil {
				return nil, fsError(vm, "open", name, err)
			}
			if enc := encoding(call.Argument(1)); enc != "" {
				return vm.ToValue(string(data)), nil
			}
			return newBuffer(vm, data), nil
		}

		writeFile := func(call goja.FunctionCall) *goja.Object {
			name := call.Argument(0).String()
			var data []byte
			switch v := call.Argument(1).Export().(type) {
			case []byte:
				data = v
			case goja.ArrayBuffer:
				data = v.Bytes()
			default:
				data = []byte(call.Argument(1).String())
			}
			if err := afero.WriteFile(hostFS, name, data, 0o644); err != nil {
				return fsError(vm, "open", name, err)
			}
			return nil
		}

		sync := func(fn fsOp) func(goja.FunctionCall) goja.Value {
			return func(call goja.FunctionCall) goja.Value {
				v, thrown := fn(call)
				if thrown != nil {
					panic(thrown)
				}
				return v
			}
		}

		// node style callback as the last argument, invoked on a later loop turn
		async := func(fn fsOp) func(goja.FunctionCall) goja.Value {
			return func(call goja.FunctionCall) goja.Value {
				last := len(call.Arguments) - 1
				if last < 0 {
					panic(vm.NewTypeError("callback must be a function"))
				}
				cb, ok := goja.AssertFunction(call.Arguments[last])
				if !ok {
					panic(vm.NewTypeError("callback must be a function"))
				}
				call.Arguments = call.Arguments[:last]
				v, thrown := fn(call)
				loop.SetTimeout(func(*goja.Runtime) {
					if thrown != nil {
						_, _ = cb(goja.Undefined(), thrown)
						return
					}
					_, _ = cb(goja.Undefined(), goja.Null(), v)
				}, 0)
				return goja.Undefined()
			}
		}

		promise := func(fn fsOp) func(goja.FunctionCall) goja.Value {
			return func(call goja.FunctionCall) goja.Value {
				p, resolve, reject := vm.NewPromise()
				v, thrown := fn(call)
				loop.SetTimeout(func(*goja.Runtime) {
					if thrown != nil {
						_ = reject(thrown)
						return
					}
					_ = resolve(v)
				}, 0)
				return vm.ToValue(p)
			}
		}

		write := func(call goja.FunctionCall) (goja.Value, *goja.Object) {
			if thrown := writeFile(call); thrown != nil {
				return nil, thrown
			}
			return goja.Undefined(), nil
		}

		mkdir := func(call goja.FunctionCall) (goja.Value, *goja.Object) {
			name := call.Argument(0).String()
			mk := hostFS.Mkdir
			if opts, ok := call.Argument(1).(*goja.Object); ok {
				if r := opts.Get("recursive"); r != nil && r.ToBoolean() {
					mk = hostFS.MkdirAll
				}
			}
			if err := mk(name, 0o755); err != nil {
				return nil, fsError(vm, "mkdir", name, err)
			}
			return goja.Undefined(), nil
		}

		readdir := func(call goja.FunctionCall) (goja.Value, *goja.Object) {
			name := call.Argument(0).String()
			entries, err := afero.ReadDir(hostFS, name)
			if err != nil {
				return nil, fsError(vm, "scandir", name, err)
			}
			names := make([]any, len(entries))
			for i, e := range entries {
				names[i] = e.Name()
			}
			return vm.NewArray(names...), nil
		}

		unlink := func(call goja.FunctionCall) (goja.Value, *goja.Object) {
			name := call.Argument(0).String()
			if err := hostFS.Remove(name); err != nil {
				return nil, fsError(vm, "unlink", name, err)
			}
			return goja.Undefined(), nil
		}

		_ = exports.Set("readFileSync", sync(readFile))
		_ = exports.Set("writeFileSync", sync(write))
		_ = exports.Set("mkdirSync", sync(mkdir))
		_ = exports.Set("readdirSync", sync(readdir))
		_ = exports.Set("unlinkSync", sync(unlink))
		_ = exports.Set("existsSync", func(call goja.FunctionCall) goja.Value {
			ok, _ := afero.Exists(hostFS, call.Argument(0).String())
			return vm.ToValue(ok)
		})

		_ = exports.Set("readFile", async(readFile))
		_ = exports.Set("writeFile", async(write))
		_ = exports.Set("mkdir", async(mkdir))
		_ = exports.Set("readdir", async(readdir))
		_ = exports.Set("unlink", async(unlink))

		promises := vm.NewObject()
		_ = promises.Set("readFile", promise(readFile))
		_ = promises.Set("writeFile", promise(write))
		_ = promises.Set("mkdir", promise(mkdir))
		_ = promises.Set("readdir", promise(readdir))
		_ = promises.Set("unlink", promise(unlink))
		_ = exports.Set("promises", promises)
	}
}

// encoding returns the encoding of a node fs options argument, a string or {encoding}.
func encoding(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	if obj, ok := v.(*goja.Object); ok {
		enc := obj.Get("encoding")
		if enc == nil || goja.IsUndefined(enc) || goja.IsNull(enc) {
			return ""
		}
		return enc.String()
	}
	return v.String()
}

func newBuffer(vm *goja.Runtime, data []byte) goja.Value {
	ctor := vm.Get("Buffer").ToObject(vm)
	from, ok := goja.AssertFunction(ctor.Get("from"))
	if !ok {
		return vm.ToValue(vm.NewArrayBuffer(data))
	}
	buf, err := from(ctor, vm.ToValue(vm.NewArrayBuffer(data)))
	if err != nil {
		panic(err)
	}
	return buf
}

// fsError mirrors node's errors, message "ENOENT: ..., open 'x'" and a code property.
func fsError(vm *goja.Runtime, syscall, name string, err error) *goja.Object {
	code := "EIO"
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = "ENOENT"
	case errors.Is(err, fs.ErrExist):
		code = "EEXIST"
	case errors.Is(err, fs.ErrPermission):
		code = "EACCES"
	}
	e := vm.NewGoError(fmt.Errorf("%s: %s, %s '%s'", code, err.Error(), syscall, name))
	_ = e.Set("code", code)
	_ = e.Set("syscall", syscall)
	_ = e.Set("path", name)
	return e
}

// pathModule is node's posix path module.
func pathModule(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)

	strs := func(args []goja.Value) []string {
		out := make([]string, len(args))
		for i, a := range args {
			out[i] = a.String()
		}
		return out
	}

	_ = exports.Set("sep", "/")
	_ = exports.Set("delimiter", ":")
	_ = exports.Set("join", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(joinPath(strs(call.Arguments)...))
	})
	_ = exports.Set("resolve", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(resolvePath(strs(call.Arguments)...))
	})
	_ = exports.Set("normalize", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(joinPath(call.Argument(0).String()))
	})
	_ = exports.Set("isAbsolute", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(path.IsAbs(call.Argument(0).String()))
	})
	_ = exports.Set("dirname", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(path.Dir(call.Argument(0).String()))
	})
	_ = exports.Set("basename", func(call goja.FunctionCall) goja.Value {
		trimmed := strings.TrimRight(call.Argument(0).String(), "/")
		if trimmed == "" {
			return vm.ToValue("")
		}
		base := path.Base(trimmed)
		if ext := call.Argument(1); !goja.IsUndefined(ext) && ext.String() != base {
			base = strings.TrimSuffix(base, ext.String())
		}
		return vm.ToValue(base)
	})
	_ = exports.Set("extname", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(path.Ext(call.Argument(0).String()))
	})
	_ = exports.Set("relative", func(call goja.FunctionCall) goja.Value {
		rel, err := filepath.Rel(resolvePath(call.Argument(0).String()), resolvePath(call.Argument(1).String()))
		if err != nil {
			panic(vm.NewGoError(err))
		}
		if rel == "." {
			rel = ""
		}
		return vm.ToValue(filepath.ToSlash(rel))
	})
	_ = exports.Set("posix", exports)
}

func joinPath(parts ...string) string {
	joined := path.Join(parts...)
	if joined == "" {
		return "."
	}
	return joined
}

// resolvePath resolves right to left until an absolute path is formed,
// falling back to the working directory.
func resolvePath(parts ...string) string {
	resolved := ""
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "" {
			continue
		}
		resolved = path.Join(parts[i], resolved)
		if path.IsAbs(resolved) {
			return path.Clean(resolved)
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "/"
	}
	return path.Join(filepath.ToSlash(wd), resolved)
}
