package sheet

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/modifier"
	domain "github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/session"
	"github.com/louisbranch/initiative/internal/services/encounter/storage"
	encountersqlite "github.com/louisbranch/initiative/internal/services/encounter/storage/sqlite"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const bufSize = 1024 * 1024

func startSheetService(t *testing.T) (*encountersqlite.Store, *grpc.ClientConn) {
	t.Helper()

	store, err := encountersqlite.Open(filepath.Join(t.TempDir(), "initiative.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	RegisterSheetServiceServer(server, NewService(store))
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return store, conn
}

func seedSheet(t *testing.T, store *encountersqlite.Store) domain.Sheet {
	t.Helper()
	record := domain.New("sheet-1", "camp-1")
	goblin := combatant.New("goblin", "Goblin", combatant.KindMonster)
	goblin.Initiative = 12
	goblin.Health = combatant.Stat{Value: combatant.Int(7), Max: combatant.Int(7)}
	record.Rows = append(record.Rows, goblin)
	if err := store.CreateSheet(context.Background(), record); err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	return record
}

func TestRemoteStoreFetchAndUpdate(t *testing.T) {
	store, conn := startSheetService(t)
	seedSheet(t, store)
	remote := NewRemoteStore(conn)
	ctx := context.Background()

	fetched, err := remote.Fetch(ctx, "sheet-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(fetched.Rows) != 1 || *fetched.Rows[0].Health.Value != 7 {
		t.Fatalf("fetched = %+v", fetched)
	}

	rows := fetched.Rows
	rows[0].Note = "guarding the door"
	if err := remote.Update(ctx, "sheet-1", domain.PatchRows(rows)); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, err := store.GetSheet(ctx, "sheet-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Rows[0].Note != "guarding the door" {
		t.Fatalf("note = %q, want update applied", stored.Rows[0].Note)
	}
}

type blockingSheetClient struct {
	SheetServiceClient
	once    sync.Once
	started chan struct{}
	release chan struct{}
	callErr chan error
}

func (c *blockingSheetClient) GetSheet(ctx context.Context, _ *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	c.once.Do(func() { close(c.started) })
	<-c.release
	c.callErr <- ctx.Err()
	return encodeStruct(sheetResponse{Sheet: domain.New("sheet-1", "camp-1")})
}

func TestRemoteStoreSharedFetchSurvivesCanceledCaller(t *testing.T) {
	client := &blockingSheetClient{
		started: make(chan struct{}),
		release: make(chan struct{}),
		callErr: make(chan error, 2),
	}
	remote := &RemoteStore{client: client}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := remote.Fetch(firstCtx, "sheet-1")
		firstErr <- err
	}()
	<-client.started

	type fetched struct {
		sheet domain.Sheet
		err   error
	}
	second := make(chan fetched, 1)
	go func() {
		s, err := remote.Fetch(context.Background(), "sheet-1")
		second <- fetched{sheet: s, err: err}
	}()

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first fetch err = %v, want context.Canceled", err)
	}
	close(client.release)

	if err := <-client.callErr; err != nil {
		t.Fatalf("shared call context err = %v, want nil", err)
	}
	got := <-second
	if got.err != nil {
		t.Fatalf("second fetch: %v", got.err)
	}
	if got.sheet.ID != "sheet-1" {
		t.Fatalf("sheet id = %q, want sheet-1", got.sheet.ID)
	}
}

func TestRemoteStoreFetchMissingMapsToNotFound(t *testing.T) {
	_, conn := startSheetService(t)
	_, err := NewRemoteStore(conn).Fetch(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestGetSheetErrorCarriesDetails(t *testing.T) {
	_, conn := startSheetService(t)
	client := NewSheetServiceClient(conn)
	in, err := structpb.NewStruct(map[string]any{"id": "missing"})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	ctx := metadata.AppendToOutgoingContext(context.Background(), localeMetadataKey, "pt-BR")

	_, err = client.GetSheet(ctx, in)
	st := status.Convert(err)
	if st.Code() != codes.NotFound {
		t.Fatalf("code = %v, want %v", st.Code(), codes.NotFound)
	}
	var reason, locale string
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			reason = d.GetReason()
		case *errdetails.LocalizedMessage:
			locale = d.GetLocale()
		}
	}
	if reason != string(apperrors.CodeSheetNotFound) {
		t.Fatalf("reason = %q, want %q", reason, apperrors.CodeSheetNotFound)
	}
	if locale != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", locale)
	}
}

func TestGetSheetRequiresID(t *testing.T) {
	_, conn := startSheetService(t)
	_, err := NewSheetServiceClient(conn).GetSheet(context.Background(), &structpb.Struct{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
}

func TestCreateAndListSheets(t *testing.T) {
	_, conn := startSheetService(t)
	remote := NewRemoteStore(conn)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		created, err := remote.Create(ctx, domain.New(id, "camp-1"))
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		if created.Round != 1 || created.CreatedAt.IsZero() {
			t.Fatalf("created = %+v, want stored sheet", created)
		}
	}
	if _, err := remote.Create(ctx, domain.New("a", "camp-1")); status.Code(err) != codes.AlreadyExists {
		t.Fatalf("duplicate code = %v, want %v", status.Code(err), codes.AlreadyExists)
	}

	in, err := encodeStruct(listSheetsRequest{CampaignID: "camp-1", PageSize: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := NewSheetServiceClient(conn).ListSheets(ctx, in)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var page listSheetsResponse
	if err := decodeStruct(out, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Sheets) != 2 || page.NextPageToken != "b" {
		t.Fatalf("page = %d sheets token %q, want 2 and b", len(page.Sheets), page.NextPageToken)
	}
}

func TestUpdateOverCapacityIsResourceExhausted(t *testing.T) {
	store, conn := startSheetService(t)
	seedSheet(t, store)

	rows := make([]combatant.Combatant, 0, domain.MaxRows+1)
	for i := 0; i <= domain.MaxRows; i++ {
		rows = append(rows, combatant.New(string(rune('A'+i%26))+string(rune('a'+i/26)), "Rat", combatant.KindMonster))
	}
	err := NewRemoteStore(conn).Update(context.Background(), "sheet-1", domain.PatchRows(rows))
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.ResourceExhausted)
	}
}

func TestSessionOverRemoteStoreReceivesChanges(t *testing.T) {
	store, conn := startSheetService(t)
	seedSheet(t, store)

	var notes []session.Notification
	s := session.New(NewRemoteStore(conn), session.NotifierFunc(func(n session.Notification) {
		notes = append(notes, n)
	}), session.Options{})
	if err := s.Open(context.Background(), "sheet-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.ApplyHealth(context.Background(), "goblin", modifier.ActionDamage, 3); err != nil {
		t.Fatalf("apply health: %v", err)
	}
	stored, err := store.GetSheet(context.Background(), "sheet-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *stored.Rows[0].Health.Value != 4 {
		t.Fatalf("stored health = %d, want 4", *stored.Rows[0].Health.Value)
	}

	// Another client advances the turn directly against the store.
	if _, err := store.UpdateSheet(context.Background(), "sheet-1", domain.Patch{}.WithTurn(domain.Sheet{ActiveIndex: 0, Round: 3})); err != nil {
		t.Fatalf("update: %v", err)
	}
	waitFor(t, func() bool {
		local, ok := s.Sheet()
		return ok && local.Round == 3
	})
	if len(notes) != 0 {
		t.Fatalf("notifications = %+v, want none", notes)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
