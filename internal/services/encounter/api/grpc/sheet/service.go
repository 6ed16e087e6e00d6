package sheet

import (
	"context"
	"errors"
	"log"
	"strings"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
	"github.com/louisbranch/initiative/internal/platform/grpc/pagination"
	errori18n "github.com/louisbranch/initiative/internal/platform/errors/i18n"
	domain "github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultListSheetsPageSize = 10
	maxListSheetsPageSize     = 50

	// subscribeBuffer bounds how many pending snapshots a slow subscriber
	// holds before older ones are dropped in favour of newer ones.
	subscribeBuffer = 8

	localeMetadataKey = "x-locale"
)

// Service implements SheetServiceServer over a sheet store.
type Service struct {
	store storage.SheetStore
}

// NewService creates a sheet service backed by store.
func NewService(store storage.SheetStore) *Service {
	return &Service{store: store}
}

// CreateSheet stores a new sheet.
func (s *Service) CreateSheet(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(in); err != nil {
		return nil, err
	}
	var req createSheetRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.store.CreateSheet(ctx, req.Sheet); err != nil {
		return nil, toStatus(ctx, err)
	}
	created, err := s.store.GetSheet(ctx, req.Sheet.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return encodeResponse(sheetResponse{Sheet: created})
}

// GetSheet returns one sheet.
func (s *Service) GetSheet(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(in); err != nil {
		return nil, err
	}
	id, err := decodeSheetID(in)
	if err != nil {
		return nil, err
	}
	record, err := s.store.GetSheet(ctx, id)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return encodeResponse(sheetResponse{Sheet: record})
}

// UpdateSheet applies a partial update.
func (s *Service) UpdateSheet(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(in); err != nil {
		return nil, err
	}
	var req updateSheetRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "sheet id is required")
	}
	updated, err := s.store.UpdateSheet(ctx, req.ID, req.Patch)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return encodeResponse(sheetResponse{Sheet: updated})
}

// ListSheets returns one page of sheets.
func (s *Service) ListSheets(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(in); err != nil {
		return nil, err
	}
	var req listSheetsRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	pageSize := pagination.ClampPageSize(req.PageSize, pagination.PageSizeConfig{
		Default: defaultListSheetsPageSize,
		Max:     maxListSheetsPageSize,
	})
	page, err := s.store.ListSheets(ctx, req.CampaignID, pageSize, req.PageToken)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	sheets := page.Sheets
	if sheets == nil {
		sheets = []domain.Sheet{}
	}
	return encodeResponse(listSheetsResponse{Sheets: sheets, NextPageToken: page.NextPageToken})
}

// Subscribe streams the current sheet and then every committed change until
// the client goes away.
func (s *Service) Subscribe(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if err := s.ready(in); err != nil {
		return err
	}
	id, err := decodeSheetID(in)
	if err != nil {
		return err
	}
	ctx := stream.Context()

	updates := make(chan domain.Sheet, subscribeBuffer)
	sub, err := s.store.Subscribe(ctx, id, func(changed domain.Sheet) {
		offerLatest(updates, changed)
	})
	if err != nil {
		return toStatus(ctx, err)
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.Printf("sheet subscribe: close subscription for %s: %v", id, err)
		}
	}()

	current, err := s.store.GetSheet(ctx, id)
	if err != nil {
		return toStatus(ctx, err)
	}
	if err := sendSheet(stream, current); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case changed := <-updates:
			if err := sendSheet(stream, changed); err != nil {
				return err
			}
		}
	}
}

func (s *Service) ready(in *structpb.Struct) error {
	if in == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}
	if s == nil || s.store == nil {
		return status.Error(codes.Internal, "sheet store is not configured")
	}
	return nil
}

// offerLatest queues changed without blocking the publisher. When the buffer
// is full the oldest queued snapshot is dropped; every snapshot is a full
// sheet, so the newest one supersedes it.
func offerLatest(updates chan domain.Sheet, changed domain.Sheet) {
	for {
		select {
		case updates <- changed:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
	}
}

func sendSheet(stream grpc.ServerStreamingServer[structpb.Struct], record domain.Sheet) error {
	msg, err := encodeResponse(sheetResponse{Sheet: record})
	if err != nil {
		return err
	}
	return stream.Send(msg)
}

func decodeSheetID(in *structpb.Struct) (string, error) {
	var req sheetIDRequest
	if err := decodeStruct(in, &req); err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "sheet id is required")
	}
	return id, nil
}

func encodeResponse(value any) (*structpb.Struct, error) {
	out, err := encodeStruct(value)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps storage and domain errors onto gRPC statuses. Domain errors
// carry error details with a message localized for the caller.
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		err = apperrors.Wrap(apperrors.CodeSheetNotFound, "sheet not found", err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "sheet already exists")
	}

	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		return status.Errorf(codes.Internal, "sheet service: %v", err)
	}
	catalog := errori18n.GetCatalog(requestLocale(ctx))
	return domainErr.ToGRPCStatus(catalog.Locale(), catalog.Format(domainErr.Code, domainErr.Metadata))
}

func requestLocale(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(localeMetadataKey); len(values) > 0 {
		return values[0]
	}
	return ""
}
