package service_test

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cachemocks "github.com/zlnvch/layerdeck/cache/mocks"
	"github.com/zlnvch/layerdeck/engine"
	mqmocks "github.com/zlnvch/layerdeck/mq/mocks"
	"github.com/zlnvch/layerdeck/service"
	storemocks "github.com/zlnvch/layerdeck/store/mocks"
	"github.com/zlnvch/layerdeck/worker"
)

// The service is the engine's persistence and asset collaborator
var (
	_ engine.Persister     = (*service.Service)(nil)
	_ engine.AssetUploader = (*service.Service)(nil)
)

func setupService(t *testing.T) (*service.Service, *storemocks.MockStore, *cachemocks.MockCache, *mqmocks.MockMQ, *worker.TouchBatcher) {
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	mockMQ := new(mqmocks.MockMQ)

	// Not running; tests read touches straight off its channel
	touchBatcher := worker.NewTouchBatcher(mockStore, 1000)

	svc, err := service.NewService(
		mockStore,
		mockCache,
		mockMQ,
		touchBatcher,
		nil,
		[]byte("secret"),
		t.TempDir(),
		service.DefaultLimits(),
	)
	require.NoError(t, err)

	return svc, mockStore, mockCache, mockMQ, touchBatcher
}

// Helper that creates a channel and wraps a mock call to signal when it's called
func wrapMockWithSignal(call *mock.Call) chan struct{} {
	done := make(chan struct{})
	call.Run(func(args mock.Arguments) {
		close(done)
	})
	return done
}

func touches(b *worker.TouchBatcher) []worker.TouchUpdate {
	var out []worker.TouchUpdate
	for {
		select {
		case u := <-b.UpdateCh:
			out = append(out, u)
		default:
			return out
		}
	}
}
