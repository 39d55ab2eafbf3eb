// Package gameserver exposes the conductor over gRPC as the
// boxcars.v1.Conductor service.
package gameserver

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cory-johannsen/boxcars/internal/conductor"
	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/derived"
	"github.com/cory-johannsen/boxcars/internal/game/player"
	"github.com/cory-johannsen/boxcars/internal/game/roll"
	"github.com/cory-johannsen/boxcars/internal/game/stats"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "boxcars.v1.Conductor"

// GetStateRequest asks for the whole game.
type GetStateRequest struct{}

// GetStateResponse carries the game and one summary per player card.
type GetStateResponse struct {
	State     *player.GameState `json:"state"`
	Summaries []derived.Summary `json:"summaries"`
}

// RollRequest rolls for one player. The operator's decisions travel with the
// request: Region answers the re-roll guard (empty keeps the rolled region),
// HomeCityID picks a home city (zero picks the first candidate) and Decline
// cancels a home-city pick.
type RollRequest struct {
	PlayerID   string `json:"playerId"`
	Region     string `json:"region,omitempty"`
	HomeCityID int    `json:"homeCityId,omitempty"`
	Decline    bool   `json:"decline,omitempty"`
}

// RollResponse carries the outcome and the player after the commit.
type RollResponse struct {
	Outcome *roll.Outcome  `json:"outcome"`
	Player  *player.Player `json:"player"`
}

// StatsRequest asks for the stats report.
type StatsRequest struct {
	IncludeUnreachable bool `json:"includeUnreachable"`
}

// StatsResponse carries the report and its CSV rendering.
type StatsResponse struct {
	Report stats.Report `json:"report"`
	CSV    string       `json:"csv"`
}

// ConductorServer is the server API of boxcars.v1.Conductor.
type ConductorServer interface {
	GetState(ctx context.Context, req *GetStateRequest) (*GetStateResponse, error)
	Roll(ctx context.Context, req *RollRequest) (*RollResponse, error)
	Stats(ctx context.Context, req *StatsRequest) (*StatsResponse, error)
}

// ConductorService implements ConductorServer over a conductor.Service.
type ConductorService struct {
	svc *conductor.Service
}

// NewConductorService wraps svc.
//
// Precondition: svc must be non-nil.
func NewConductorService(svc *conductor.Service) *ConductorService {
	return &ConductorService{svc: svc}
}

// GetState returns the game.
func (s *ConductorService) GetState(_ context.Context, _ *GetStateRequest) (*GetStateResponse, error) {
	return &GetStateResponse{State: s.svc.State(), Summaries: s.svc.Summaries()}, nil
}

// Roll runs and commits a roll with the request's preset decisions.
//
// Postcondition: Returns codes.NotFound for unknown players and
// codes.Aborted when another roll for the player is in flight.
func (s *ConductorService) Roll(ctx context.Context, req *RollRequest) (*RollResponse, error) {
	chooser := roll.PresetChooser{Region: req.Region, HomeCityID: req.HomeCityID, Decline: req.Decline}
	o, err := s.svc.Roll(ctx, req.PlayerID, chooser)
	if err != nil {
		return nil, toStatus(err)
	}
	p, err := s.svc.Player(req.PlayerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RollResponse{Outcome: o, Player: p}, nil
}

// Stats returns the report and CSV.
func (s *ConductorService) Stats(_ context.Context, req *StatsRequest) (*StatsResponse, error) {
	r := s.svc.Stats(req.IncludeUnreachable)
	return &StatsResponse{Report: r, CSV: stats.BuildCSV(r)}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, player.ErrPlayerNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, conductor.ErrRollInProgress), errors.Is(err, roll.ErrStaleRoll):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, dataset.ErrUnknownMap):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// ConductorServiceDesc describes boxcars.v1.Conductor for grpc.Server.
var ConductorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConductorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetState", Handler: getStateHandler},
		{MethodName: "Roll", Handler: rollHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "boxcars/v1/conductor",
}

// RegisterConductorServer registers srv on s.
func RegisterConductorServer(s grpc.ServiceRegistrar, srv ConductorServer) {
	s.RegisterService(&ConductorServiceDesc, srv)
}

func getStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetStateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConductorServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetState"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ConductorServer).GetState(ctx, req.(*GetStateRequest))
	})
}

func rollHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RollRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConductorServer).Roll(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Roll"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ConductorServer).Roll(ctx, req.(*RollRequest))
	})
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConductorServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Stats"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ConductorServer).Stats(ctx, req.(*StatsRequest))
	})
}

// ConductorClient calls boxcars.v1.Conductor with the JSON codec.
type ConductorClient struct {
	cc grpc.ClientConnInterface
}

// NewConductorClient wraps cc.
func NewConductorClient(cc grpc.ClientConnInterface) *ConductorClient {
	return &ConductorClient{cc: cc}
}

func (c *ConductorClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

// GetState calls Conductor.GetState.
func (c *ConductorClient) GetState(ctx context.Context, in *GetStateRequest, opts ...grpc.CallOption) (*GetStateResponse, error) {
	out := new(GetStateResponse)
	if err := c.invoke(ctx, "GetState", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Roll calls Conductor.Roll.
func (c *ConductorClient) Roll(ctx context.Context, in *RollRequest, opts ...grpc.CallOption) (*RollResponse, error) {
	out := new(RollResponse)
	if err := c.invoke(ctx, "Roll", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats calls Conductor.Stats.
func (c *ConductorClient) Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	out := new(StatsResponse)
	if err := c.invoke(ctx, "Stats", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
