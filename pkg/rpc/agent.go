package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sanyaade-teachings/ganeti/pkg/log"
	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName      = "ganeti.rpc.NodeAgent"
	methodNodeInfo   = "NodeInfo"
	fullNodeInfoName = "/" + serviceName + "/" + methodNodeInfo
)

// AgentServer is the node side of live data collection
type AgentServer interface {
	NodeInfo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAgentServer registers srv on s
func RegisterAgentServer(s *grpc.Server, srv AgentServer) {
	s.RegisterService(&agentServiceDesc, srv)
}

var agentServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AgentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodNodeInfo, Handler: nodeInfoHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ganeti/rpc/agent.proto",
}

func nodeInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServer).NodeInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullNodeInfoName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AgentServer).NodeInfo(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// InfoFunc produces the live data of the local node
type InfoFunc func(ctx context.Context) (*types.NodeRuntime, error)

// Agent answers NodeInfo requests from the master
type Agent struct {
	name string
	info InfoFunc
}

// NewAgent creates an agent for the node called name
func NewAgent(name string, info InfoFunc) *Agent {
	return &Agent{name: name, info: info}
}

// NodeInfo implements AgentServer. Requests addressed to another node
// are refused.
func (a *Agent) NodeInfo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if node := req.GetFields()["node"].GetStringValue(); node != "" && node != a.name {
		return nil, status.Errorf(codes.InvalidArgument, "this is node %s, not %s", a.name, node)
	}
	rt, err := a.info(ctx)
	if err != nil {
		logger := log.WithComponent("agent")
		logger.Warn().Err(err).Msg("Failed to gather node info")
		return nil, status.Errorf(codes.Unavailable, "failed to gather node info: %v", err)
	}
	return runtimeToStruct(rt)
}

func runtimeToStruct(rt *types.NodeRuntime) (*structpb.Struct, error) {
	data, err := json.Marshal(rt)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func structToRuntime(s *structpb.Struct) (*types.NodeRuntime, error) {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, err
	}
	var rt types.NodeRuntime
	if err := json.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("invalid node info: %w", err)
	}
	return &rt, nil
}
