package system_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arc-self/eventcore/system"
)

func TestInProcessPrompterDeliversWakeupToSubscriber(t *testing.T) {
	p := system.NewInProcessPrompter()
	ch := p.Subscribe("orders", 0)

	require.NoError(t, p.Publish(context.Background(), "orders", 0))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected wakeup, got none")
	}
}

func TestInProcessPrompterIsolatesPipelinesAndNames(t *testing.T) {
	p := system.NewInProcessPrompter()
	chOrdersZero := p.Subscribe("orders", 0)
	chOrdersOne := p.Subscribe("orders", 1)
	chOther := p.Subscribe("payments", 0)

	require.NoError(t, p.Publish(context.Background(), "orders", 0))

	select {
	case <-chOrdersZero:
	default:
		t.Fatal("expected wakeup on matching (name, pipeline)")
	}
	select {
	case <-chOrdersOne:
		t.Fatal("unexpected wakeup on different pipeline")
	default:
	}
	select {
	case <-chOther:
		t.Fatal("unexpected wakeup on different upstream name")
	default:
	}
}

func TestInProcessPrompterPublishNeverBlocksOnFullChannel(t *testing.T) {
	p := system.NewInProcessPrompter()
	ch := p.Subscribe("orders", 0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			require.NoError(t, p.Publish(context.Background(), "orders", 0))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}

	select {
	case <-ch:
	default:
		t.Fatal("expected at least one buffered wakeup to survive")
	}
}

func TestInProcessPrompterPublishWithNoSubscribersIsANoop(t *testing.T) {
	p := system.NewInProcessPrompter()
	require.NoError(t, p.Publish(context.Background(), "nobody-listening", 0))
}
