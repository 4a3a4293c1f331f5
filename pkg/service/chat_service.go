package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ChatServiceName is the fully-qualified gRPC service name.
	ChatServiceName = "aarogya.v1.ChatService"
	// ChatMethod is the full method path of the Chat RPC.
	ChatMethod = "/" + ChatServiceName + "/Chat"
	// RequestIDHeader carries the request ID in gRPC metadata.
	RequestIDHeader = "x-request-id"
)

// ChatServer is the server API for ChatService. Requests and responses are
// google.protobuf.Struct values carrying the boundary JSON shape.
type ChatServer interface {
	Chat(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ChatServiceDesc describes ChatService for grpc.Server.RegisterService.
var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Chat",
			Handler:    chatHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aarogya/v1/chat.proto",
}

func chatHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).Chat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ChatMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).Chat(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterChatServer registers srv on s.
func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

// ChatClient calls ChatService.
type ChatClient struct {
	cc grpc.ClientConnInterface
}

// NewChatClient creates a client over cc.
func NewChatClient(cc grpc.ClientConnInterface) *ChatClient {
	return &ChatClient{cc: cc}
}

// Chat sends one question.
func (c *ChatClient) Chat(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ChatMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// NewChatRequest builds the request message for text and lang.
func NewChatRequest(text, lang string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"text": text,
		"lang": lang,
	})
}

// ChatService exposes the Orchestrator over gRPC.
type ChatService struct {
	Orchestrator *Orchestrator
	Logger       *logrus.Logger
}

// NewChatService creates a new ChatService instance.
func NewChatService(orchestrator *Orchestrator, logger *logrus.Logger) *ChatService {
	if logger == nil {
		logger = logrus.New()
	}
	return &ChatService{
		Orchestrator: orchestrator,
		Logger:       logger,
	}
}

// Chat answers a question. Rejections map to InvalidArgument and hard
// failures to Internal; success and soft failure return the response body.
func (s *ChatService) Chat(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	requestID := incomingRequestID(ctx)
	_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID))

	fields := req.GetFields()
	chatReq := ChatRequest{
		Text: fields["text"].GetStringValue(),
		Lang: fields["lang"].GetStringValue(),
	}

	logger := s.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"lang":       chatReq.Lang,
		"text_len":   len(chatReq.Text),
	})
	logger.Info("[gRPC] Chat request received")

	result, err := s.Orchestrator.Chat(ctx, chatReq)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, status.Error(codes.InvalidArgument, ValidationMessage(err))
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	if result.Outcome == HardFailure {
		logger.WithError(result.Err).Error("[gRPC] Chat failed")
		return nil, status.Error(codes.Internal, ResponseBody(result)["error"].(string))
	}

	out, err := structpb.NewStruct(ResponseBody(result))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}

	logger.WithField("outcome", result.Outcome.String()).Info("[gRPC] Chat response sent")
	return out, nil
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDHeader); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}
