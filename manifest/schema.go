package manifest

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schemaSource constrains a decoded manifest. Field names follow the Go
// struct, since values are encoded from it.
const schemaSource = `
#Manifest: {
	Symbols: {
		MaxNameLength: int & >=0
		ArenaBlock:    int & >=64 & <=1048576
	}
	Gensym: {
		Counter: int & >=0 & <=4294967295
	}
	Journal: {
		Path: string & !=""
	}
	Log: {
		Verbosity: int & >=-1 & <=5
	}
	Dir: string
}
`

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error

	// cue values are not safe for concurrent evaluation.
	schemaMu sync.Mutex
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource)
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile manifest schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Manifest"))
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks the manifest against its schema.
func (m *Manifest) Validate() error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}
	schemaMu.Lock()
	defer schemaMu.Unlock()
	v := def.Unify(ctx.Encode(m))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
