package sheet

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/initiative/internal/platform/timeouts"
	domain "github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/session"
	"github.com/louisbranch/initiative/internal/services/encounter/storage"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// RemoteStore implements the session store over a SheetService connection.
type RemoteStore struct {
	client     SheetServiceClient
	retryDelay time.Duration
	// fetches collapses concurrent Fetch calls for the same sheet id.
	fetches singleflight.Group
}

// NewRemoteStore returns a store that talks to SheetService over conn.
func NewRemoteStore(conn grpc.ClientConnInterface) *RemoteStore {
	return &RemoteStore{
		client:     NewSheetServiceClient(conn),
		retryDelay: timeouts.SubscriptionRetry,
	}
}

// Fetch returns the sheet with id. Callers asking for the same sheet at the
// same time share one GetSheet call; the shared call is bounded by
// timeouts.GRPCRequest rather than by any one caller's context.
func (r *RemoteStore) Fetch(ctx context.Context, id string) (domain.Sheet, error) {
	result := r.fetches.DoChan(id, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.GRPCRequest)
		defer cancel()
		in, err := encodeStruct(sheetIDRequest{ID: id})
		if err != nil {
			return nil, err
		}
		out, err := r.client.GetSheet(callCtx, in)
		if err != nil {
			return nil, fromStatus(err)
		}
		return decodeSheetResponse(out)
	})
	select {
	case <-ctx.Done():
		return domain.Sheet{}, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return domain.Sheet{}, res.Err
		}
		return res.Val.(domain.Sheet).Clone(), nil
	}
}

// Create stores a new sheet and returns it as stored.
func (r *RemoteStore) Create(ctx context.Context, record domain.Sheet) (domain.Sheet, error) {
	in, err := encodeStruct(createSheetRequest{Sheet: record})
	if err != nil {
		return domain.Sheet{}, err
	}
	out, err := r.client.CreateSheet(ctx, in)
	if err != nil {
		return domain.Sheet{}, fromStatus(err)
	}
	return decodeSheetResponse(out)
}

// Update submits a partial update.
func (r *RemoteStore) Update(ctx context.Context, id string, patch domain.Patch) error {
	in, err := encodeStruct(updateSheetRequest{ID: id, Patch: patch})
	if err != nil {
		return err
	}
	if _, err := r.client.UpdateSheet(ctx, in); err != nil {
		return fromStatus(err)
	}
	return nil
}

// Subscribe opens a change stream for the sheet with id. It returns once the
// server has registered the subscription and delivered the current sheet to
// onChange. Dropped streams are reopened until the subscription is closed.
func (r *RemoteStore) Subscribe(ctx context.Context, id string, onChange func(domain.Sheet)) (session.Subscription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("sheet id is required")
	}
	if onChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}
	in, err := encodeStruct(sheetIDRequest{ID: id})
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := r.open(subCtx, in, onChange)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &remoteSubscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		r.consume(subCtx, id, in, stream, onChange)
	}()
	return sub, nil
}

// open starts one stream and delivers its first snapshot.
func (r *RemoteStore) open(ctx context.Context, in *structpb.Struct, onChange func(domain.Sheet)) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := r.client.Subscribe(ctx, in)
	if err != nil {
		return nil, fromStatus(err)
	}
	first, err := stream.Recv()
	if err != nil {
		return nil, fromStatus(err)
	}
	snapshot, err := decodeSheetResponse(first)
	if err != nil {
		return nil, err
	}
	onChange(snapshot)
	return stream, nil
}

func (r *RemoteStore) consume(ctx context.Context, id string, in *structpb.Struct, stream grpc.ServerStreamingClient[structpb.Struct], onChange func(domain.Sheet)) {
	for {
		for {
			msg, err := stream.Recv()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("sheet subscribe: stream for %s ended: %v", id, err)
				}
				break
			}
			changed, err := decodeSheetResponse(msg)
			if err != nil {
				log.Printf("sheet subscribe: decode change for %s: %v", id, err)
				continue
			}
			onChange(changed)
		}

		for {
			if !waitSubscriptionRetry(ctx, r.retryDelay) {
				return
			}
			next, err := r.open(ctx, in, onChange)
			if err == nil {
				stream = next
				break
			}
			log.Printf("sheet subscribe: reopen stream for %s: %v", id, err)
		}
	}
}

func waitSubscriptionRetry(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		delay = time.Second
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type remoteSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close cancels the stream and waits for the consumer to exit.
func (s *remoteSubscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

func decodeSheetResponse(in *structpb.Struct) (domain.Sheet, error) {
	var resp sheetResponse
	if err := decodeStruct(in, &resp); err != nil {
		return domain.Sheet{}, err
	}
	return resp.Sheet, nil
}

// fromStatus maps NotFound back onto the storage sentinel so callers can
// treat local and remote stores alike.
func fromStatus(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, status.Convert(err).Message())
	}
	return err
}

var _ session.Store = (*RemoteStore)(nil)
