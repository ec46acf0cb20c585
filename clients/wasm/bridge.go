//go:build js && wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/xob0t/StoryStencil/pkg/errors"
)

// jsError returns {error, code} for synchronous calls.
func jsError(err error) js.Value {
	return js.ValueOf(map[string]any{
		"error": errors.UserMessage(err),
		"code":  string(errors.GetCode(err)),
	})
}

// promise runs fn off the event loop and settles a JS Promise with its
// result. Work that awaits other promises must go through here.
func promise(fn func() (any, error)) js.Value {
	executor := js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		go func() {
			v, err := fn()
			if err != nil {
				e := js.Global().Get("Error").New(errors.UserMessage(err))
				e.Set("code", string(errors.GetCode(err)))
				reject.Invoke(e)
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	defer executor.Release()
	return js.Global().Get("Promise").New(executor)
}

// await blocks the calling goroutine until p settles.
func await(p js.Value) (js.Value, error) {
	type settled struct {
		v   js.Value
		err error
	}
	ch := make(chan settled, 1)
	onResolve := js.FuncOf(func(_ js.Value, args []js.Value) any {
		v := js.Undefined()
		if len(args) > 0 {
			v = args[0]
		}
		ch <- settled{v: v}
		return nil
	})
	onReject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		msg := "rejected"
		if len(args) > 0 && !args[0].IsUndefined() && !args[0].IsNull() {
			msg = args[0].Call("toString").String()
		}
		ch <- settled{err: fmt.Errorf("%s", msg)}
		return nil
	})
	defer onResolve.Release()
	defer onReject.Release()

	p.Call("then", onResolve, onReject)
	s := <-ch
	return s.v, s.err
}

func bytesFromJS(v js.Value) []byte {
	if v.IsUndefined() || v.IsNull() {
		return nil
	}
	b := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(b, v)
	return b
}

func bytesToJS(b []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(arr, b)
	return arr
}

func blob(data []byte, mime string) js.Value {
	return js.Global().Get("Blob").New([]any{bytesToJS(data)}, map[string]any{"type": mime})
}
