package batch

import (
	"context"
	"sync"
	"testing"

	"citelink/internal/logging"
	"citelink/internal/pipeline"
	"citelink/internal/state"
	"citelink/internal/testsupport"
)

func TestDiagErrors(t *testing.T) {
	stage := &gateStage{}
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	machine := state.NewMachine(store, logging.NewNop())
	orch := pipeline.New(store, machine, []pipeline.Stage{stage}, logging.NewNop())
	ids := addURLs(t, store, 4)
	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := orch.ProcessURL(context.Background(), id)
			t.Logf("id=%d final=%s err=%v", id, res.Final, err)
		}()
	}
	wg.Wait()
}
