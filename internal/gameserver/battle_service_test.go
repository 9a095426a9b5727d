package gameserver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/moves"
	"github.com/cory-johannsen/duel/internal/gameserver/battlev1"
	"github.com/cory-johannsen/duel/internal/resolution"
	"github.com/cory-johannsen/duel/internal/storage/memory"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixedSource int

func (f fixedSource) Intn(n int) int { return int(f) % n }

// testGRPCServer starts an in-process gRPC server and returns a connected client.
func testGRPCServer(t *testing.T, opts ...resolution.Option) *battlev1.BattleServiceClient {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg, err := moves.LoadDirectory("../../content/moves")
	require.NoError(t, err)
	base := []resolution.Option{
		resolution.WithClock(func() time.Time { return epoch }),
		resolution.WithSeedSource(fixedSource(99)),
	}
	resolver := resolution.NewResolver(memory.NewStore(), reg, battle.Rules{}, logger, append(base, opts...)...)
	svc := NewBattleService(resolver, logger)
	svc.clock = func() time.Time { return epoch }

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(UnaryLogging(logger)))
	battlev1.RegisterBattleServiceServer(grpcServer, svc)

	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(func() { grpcServer.Stop() })

	conn, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return battlev1.NewBattleServiceClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func roster(player, species string) map[string]any {
	return map[string]any{
		"player": player,
		"members": []any{map[string]any{
			"species": species,
			"level":   50,
			"types":   []any{"Normal"},
			"stats":   map[string]any{"hp": 200, "atk": 100, "def": 100, "spa": 100, "spd": 100, "spe": 80},
			"moves":   []any{"tackle", "splash"},
		}},
	}
}

func createBattle(t *testing.T, client *battlev1.BattleServiceClient) string {
	t.Helper()
	resp, err := client.CreateBattle(context.Background(), mustStruct(t, map[string]any{
		"rosters": []any{roster("alice", "Rattata"), roster("bob", "Sentret")},
	}))
	require.NoError(t, err)
	id := resp.Fields["battleId"].GetStringValue()
	require.NotEmpty(t, id)
	return id
}

func choice(t *testing.T, id, player, moveID string, version int) *structpb.Struct {
	return mustStruct(t, map[string]any{
		"battleId": id,
		"player":   player,
		"choice":   map[string]any{"action": "move", "moveId": moveID, "observedVersion": version},
	})
}

func TestCreateBattle(t *testing.T) {
	client := testGRPCServer(t)
	resp, err := client.CreateBattle(context.Background(), mustStruct(t, map[string]any{
		"rosters": []any{roster("alice", "Rattata"), roster("bob", "Sentret")},
	}))
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Fields["battleId"].GetStringValue())
	assert.Equal(t, "2026-03-01T09:00:00Z", resp.Fields["serverTime"].GetStringValue())
	public := resp.Fields["public"].GetStructValue()
	require.NotNil(t, public)
	assert.Equal(t, "choosing", public.Fields["phase"].GetStringValue())
}

func TestCreateBattle_InvalidRoster(t *testing.T) {
	client := testGRPCServer(t)
	_, err := client.CreateBattle(context.Background(), mustStruct(t, map[string]any{
		"rosters": []any{roster("alice", "Rattata"), roster("alice", "Sentret")},
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCreateBattle_UnknownField(t *testing.T) {
	client := testGRPCServer(t)
	_, err := client.CreateBattle(context.Background(), mustStruct(t, map[string]any{"teams": []any{}}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSubmitChoice_FullTurn(t *testing.T) {
	var (
		mu        sync.Mutex
		published []resolution.Record
	)
	client := testGRPCServer(t, resolution.WithNotifier(resolution.NotifierFunc(
		func(_ context.Context, rec resolution.Record) {
			mu.Lock()
			defer mu.Unlock()
			published = append(published, rec)
		},
	)))
	ctx := context.Background()
	id := createBattle(t, client)

	first, err := client.SubmitChoice(ctx, choice(t, id, "alice", "tackle", 1))
	require.NoError(t, err)
	assert.Equal(t, "waiting", first.Fields["outcome"].GetStringValue())

	second, err := client.SubmitChoice(ctx, choice(t, id, "bob", "splash", 1))
	require.NoError(t, err)
	assert.Equal(t, "committed", second.Fields["outcome"].GetStringValue())
	rec := second.Fields["record"].GetStructValue()
	require.NotNil(t, rec)
	assert.Equal(t, "turn", rec.Fields["kind"].GetStringValue())
	assert.NotEmpty(t, rec.Fields["idempotencyToken"].GetStringValue())
	assert.NotEmpty(t, rec.Fields["logs"].GetListValue().GetValues())
	mu.Lock()
	assert.Len(t, published, 1)
	mu.Unlock()

	view, err := client.GetBattle(ctx, mustStruct(t, map[string]any{"battleId": id, "viewer": "alice"}))
	require.NoError(t, err)
	public := view.Fields["public"].GetStructValue()
	assert.Equal(t, float64(2), public.Fields["turn"].GetNumberValue())
	assert.NotNil(t, view.Fields["private"].GetStructValue())
}

func TestSubmitChoice_StatusCodes(t *testing.T) {
	client := testGRPCServer(t)
	ctx := context.Background()
	id := createBattle(t, client)

	_, err := client.SubmitChoice(ctx, choice(t, "missing", "alice", "tackle", 1))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.SubmitChoice(ctx, choice(t, id, "mallory", "tackle", 1))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.SubmitChoice(ctx, mustStruct(t, map[string]any{
		"battleId": id, "player": "alice", "choice": map[string]any{"action": "dance"},
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SubmitChoice(ctx, choice(t, id, "alice", "tackle", 1))
	require.NoError(t, err)
	_, err = client.SubmitChoice(ctx, choice(t, id, "alice", "splash", 1))
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = client.SubmitReplacement(ctx, mustStruct(t, map[string]any{
		"battleId": id, "player": "alice", "index": 1,
	}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.SubmitReplacement(ctx, mustStruct(t, map[string]any{"battleId": id, "player": "alice"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetBattle_Stranger(t *testing.T) {
	client := testGRPCServer(t)
	id := createBattle(t, client)

	view, err := client.GetBattle(context.Background(), mustStruct(t, map[string]any{"battleId": id, "viewer": "eve"}))
	require.NoError(t, err)
	assert.NotNil(t, view.Fields["public"].GetStructValue())
	_, hasPrivate := view.Fields["private"]
	assert.False(t, hasPrivate)
}

func TestExportReplay(t *testing.T) {
	client := testGRPCServer(t)
	ctx := context.Background()
	id := createBattle(t, client)

	_, err := client.ExportReplay(ctx, mustStruct(t, map[string]any{"battleId": id, "requester": "eve"}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	resp, err := client.ExportReplay(ctx, mustStruct(t, map[string]any{"battleId": id, "requester": "bob"}))
	require.NoError(t, err)
	entries := resp.Fields["entries"].GetListValue().GetValues()
	require.Len(t, entries, 1)
	assert.Equal(t, "start", entries[0].GetStructValue().Fields["kind"].GetStringValue())
}
