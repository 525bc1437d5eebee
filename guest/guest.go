package guest

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/shard-runtime/closure"
	"github.com/wippyai/shard-runtime/errors"
)

// Module hosts a WebAssembly guest whose exported functions can be
// handed to the runtime as closures. The guest plays the caller-side
// role of the bridge: its functions cross into the shard runtime as
// opaque units of work.
type Module struct {
	rt    wazero.Runtime
	mod   api.Module
	table *closure.Table
}

// Load compiles and instantiates a guest module from its binary.
func Load(ctx context.Context, bin []byte) (*Module, error) {
	rt := wazero.NewRuntime(ctx)

	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseGuest, errors.KindInvalidInput, err, "failed to instantiate guest module")
	}

	return &Module{rt: rt, mod: mod, table: closure.NewTable()}, nil
}

// Closure adapts the named export into a Closure. Invoke calls the
// export with no arguments; a single result comes back as uint64, the
// wazero stack representation. Drop releases the export's handle.
func (m *Module) Closure(name string) (closure.Closure, error) {
	fn := m.mod.ExportedFunction(name)
	if fn == nil {
		return closure.Closure{}, errors.NotFound(errors.PhaseGuest, "exported function", name)
	}

	h, err := m.table.Register(fn)
	if err != nil {
		return closure.Closure{}, err
	}

	return closure.Closure{
		Payload: h,
		Invoke: func(ctx context.Context, payload closure.Handle) (any, error) {
			v, ok := m.table.Get(payload)
			if !ok {
				return nil, errors.Contract(errors.PhaseGuest, "invoke on released guest closure")
			}
			results, err := v.(api.Function).Call(ctx)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseGuest, errors.KindInvalidInput, err, "guest call failed")
			}
			switch len(results) {
			case 0:
				return nil, nil
			case 1:
				return results[0], nil
			default:
				return results, nil
			}
		},
		Drop: func(payload closure.Handle) {
			m.table.Drop(payload)
		},
	}, nil
}

// Exports lists the module's exported function names.
func (m *Module) Exports() []string {
	defs := m.mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return names
}

// Close releases the guest and every closure handle it produced.
func (m *Module) Close(ctx context.Context) error {
	m.table.Close()
	return m.rt.Close(ctx)
}
