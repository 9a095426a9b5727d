// Package gameserver exposes battles over gRPC and pushes committed
// resolutions to websocket watchers.
package gameserver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/gameserver/battlev1"
	"github.com/cory-johannsen/duel/internal/resolution"
)

// Battles is the subset of resolution.Resolver the service calls.
type Battles interface {
	CreateBattle(ctx context.Context, rosters [2]battle.Roster) (*battle.State, error)
	SubmitChoice(ctx context.Context, battleID, player string, ch battle.Choice) (resolution.Result, error)
	SubmitReplacement(ctx context.Context, battleID, player string, index int) (resolution.Result, error)
	GetView(ctx context.Context, battleID, viewer string) (resolution.View, error)
	ExportReplay(ctx context.Context, battleID, requester string) (resolution.Replay, error)
}

var _ Battles = (*resolution.Resolver)(nil)

// BattleService implements battlev1.BattleServiceServer.
type BattleService struct {
	battles Battles
	logger  *zap.Logger
	clock   func() time.Time
}

var _ battlev1.BattleServiceServer = (*BattleService)(nil)

// NewBattleService creates a BattleService.
//
// Precondition: battles and logger must be non-nil.
func NewBattleService(battles Battles, logger *zap.Logger) *BattleService {
	return &BattleService{battles: battles, logger: logger, clock: time.Now}
}

type createBattleRequest struct {
	Rosters [2]battle.Roster `json:"rosters"`
}

type createBattleResponse struct {
	BattleID string            `json:"battleId"`
	Public   battle.PublicView `json:"public"`
}

type submitChoiceRequest struct {
	BattleID string        `json:"battleId"`
	Player   string        `json:"player"`
	Choice   battle.Choice `json:"choice"`
}

type submitReplacementRequest struct {
	BattleID string `json:"battleId"`
	Player   string `json:"player"`
	Index    *int   `json:"index"`
}

type submitResponse struct {
	Outcome string             `json:"outcome"`
	Record  *resolution.Record `json:"record,omitempty"`
}

type getBattleRequest struct {
	BattleID string `json:"battleId"`
	Viewer   string `json:"viewer"`
}

type exportReplayRequest struct {
	BattleID  string `json:"battleId"`
	Requester string `json:"requester"`
}

// CreateBattle validates both rosters and starts a battle.
func (s *BattleService) CreateBattle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createBattleRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	st, err := s.battles.CreateBattle(ctx, req.Rosters)
	if err != nil {
		return nil, s.statusError(err)
	}
	return s.respond(createBattleResponse{BattleID: st.ID, Public: battle.Public(st)})
}

// SubmitChoice records a player's choice for the current turn.
func (s *BattleService) SubmitChoice(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req submitChoiceRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.BattleID == "" || req.Player == "" {
		return nil, status.Error(codes.InvalidArgument, "battleId and player are required")
	}
	res, err := s.battles.SubmitChoice(ctx, req.BattleID, req.Player, req.Choice)
	if err != nil {
		return nil, s.statusError(err)
	}
	return s.respond(submitResponse{Outcome: res.Outcome.String(), Record: res.Record})
}

// SubmitReplacement records a player's pick after a faint.
func (s *BattleService) SubmitReplacement(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req submitReplacementRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.BattleID == "" || req.Player == "" || req.Index == nil {
		return nil, status.Error(codes.InvalidArgument, "battleId, player and index are required")
	}
	res, err := s.battles.SubmitReplacement(ctx, req.BattleID, req.Player, *req.Index)
	if err != nil {
		return nil, s.statusError(err)
	}
	return s.respond(submitResponse{Outcome: res.Outcome.String(), Record: res.Record})
}

// GetBattle returns the public view plus the viewer's private side.
func (s *BattleService) GetBattle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req getBattleRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.BattleID == "" {
		return nil, status.Error(codes.InvalidArgument, "battleId is required")
	}
	v, err := s.battles.GetView(ctx, req.BattleID, req.Viewer)
	if err != nil {
		return nil, s.statusError(err)
	}
	return s.respond(v)
}

// ExportReplay returns the committed history of a battle.
func (s *BattleService) ExportReplay(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req exportReplayRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.BattleID == "" {
		return nil, status.Error(codes.InvalidArgument, "battleId is required")
	}
	r, err := s.battles.ExportReplay(ctx, req.BattleID, req.Requester)
	if err != nil {
		return nil, s.statusError(err)
	}
	return s.respond(r)
}

func (s *BattleService) respond(v any) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		s.logger.Error("encoding response", zap.Error(err))
		return nil, status.Error(codes.Internal, "encoding response")
	}
	out, err = withServerTime(out, s.clock())
	if err != nil {
		s.logger.Error("encoding response", zap.Error(err))
		return nil, status.Error(codes.Internal, "encoding response")
	}
	return out, nil
}

// statusError maps resolution errors onto gRPC status codes. Unmapped
// errors are logged and hidden behind codes.Internal.
func (s *BattleService) statusError(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, resolution.ErrBattleNotFound):
		code = codes.NotFound
	case errors.Is(err, resolution.ErrNotParticipant):
		code = codes.PermissionDenied
	case errors.Is(err, resolution.ErrChoiceExists):
		code = codes.AlreadyExists
	case errors.Is(err, resolution.ErrWrongPhase):
		code = codes.FailedPrecondition
	case errors.Is(err, resolution.ErrInvalidChoice), errors.Is(err, resolution.ErrInvalidRoster):
		code = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		s.logger.Error("battle service failure", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

// UnaryLogging logs every unary call with its status code and duration.
func UnaryLogging(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("elapsed", time.Since(start)),
		}
		switch code {
		case codes.OK:
			logger.Debug("rpc", fields...)
		case codes.Internal, codes.Unknown:
			logger.Error("rpc", append(fields, zap.Error(err))...)
		default:
			logger.Info("rpc", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
