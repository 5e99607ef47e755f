package a2a

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	payments "github.com/nevermined-io/payments-go"
)

// Server exposes one orchestrator over the JSON-RPC task protocol.
type Server struct {
	orchestrator *payments.Orchestrator
}

// NewServer creates a server around the orchestrator.
func NewServer(orchestrator *payments.Orchestrator) *Server {
	return &Server{orchestrator: orchestrator}
}

// Register mounts the JSON-RPC endpoint on the router.
func (s *Server) Register(router gin.IRouter, path string) {
	router.POST(path, s.Handle)
}

// Handle is the gin handler for the JSON-RPC endpoint.
func (s *Server) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(nil, CodeInvalidRequest, "failed to read request body"))
		return
	}

	if err := validateRequest(body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(nil, CodeInvalidRequest, err.Error()))
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(nil, CodeInvalidRequest, "malformed JSON-RPC request"))
		return
	}

	switch req.Method {
	case MethodMessageSend:
		s.handleSend(c, req)
	case MethodMessageStream:
		s.handleStream(c, req)
	case MethodTasksGet:
		s.handleGet(c, req)
	case MethodTasksCancel:
		s.handleCancel(c, req)
	default:
		c.JSON(http.StatusOK, errorResponse(req.ID, CodeMethodNotFound, "method not found: "+req.Method))
	}
}

func (s *Server) handleSend(c *gin.Context, req RPCRequest) {
	params, ok := s.sendParams(c, req)
	if !ok {
		return
	}

	request := s.buildRequest(c, params)

	blocking := true
	if params.Configuration != nil && params.Configuration.Blocking != nil {
		blocking = *params.Configuration.Blocking
	}

	if !blocking {
		ack, err := s.orchestrator.Submit(c.Request.Context(), request)
		if err != nil {
			s.paymentError(c, req, err)
			return
		}
		c.JSON(http.StatusOK, okResponse(req.ID, TaskStatus{ID: ack.WorkID, State: ack.State}))
		return
	}

	result, err := s.orchestrator.Run(c.Request.Context(), request)
	if err != nil {
		s.paymentError(c, req, err)
		return
	}

	c.JSON(http.StatusOK, okResponse(req.ID, taskStatusFromResult(result)))
}

func (s *Server) handleStream(c *gin.Context, req RPCRequest) {
	params, ok := s.sendParams(c, req)
	if !ok {
		return
	}

	request := s.buildRequest(c, params)

	events, err := s.orchestrator.Stream(c.Request.Context(), request)
	if err != nil {
		s.paymentError(c, req, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	c.Stream(func(_ io.Writer) bool {
		event, open := <-events
		if !open {
			return false
		}
		c.SSEvent("message", okResponse(req.ID, event))
		return true
	})
}

func (s *Server) handleGet(c *gin.Context, req RPCRequest) {
	var params TaskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		c.JSON(http.StatusOK, errorResponse(req.ID, CodeInvalidParams, "tasks/get requires an id"))
		return
	}

	result, ok := s.orchestrator.Status(params.ID)
	if !ok {
		c.JSON(http.StatusOK, errorResponse(req.ID, CodeInvalidParams, "unknown task: "+params.ID))
		return
	}

	status := taskStatusFromResult(result)
	if status.State == "" {
		status.State = "working"
	}
	status.ID = params.ID
	c.JSON(http.StatusOK, okResponse(req.ID, status))
}

func (s *Server) handleCancel(c *gin.Context, req RPCRequest) {
	var params TaskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		c.JSON(http.StatusOK, errorResponse(req.ID, CodeInvalidParams, "tasks/cancel requires an id"))
		return
	}

	if err := s.orchestrator.Cancel(c.Request.Context(), params.ID); err != nil {
		c.JSON(http.StatusOK, errorResponse(req.ID, CodeInvalidParams, err.Error()))
		return
	}

	c.JSON(http.StatusOK, okResponse(req.ID, TaskStatus{ID: params.ID, State: "canceling"}))
}

func (s *Server) sendParams(c *gin.Context, req RPCRequest) (MessageSendParams, bool) {
	var params MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		c.JSON(http.StatusOK, errorResponse(req.ID, CodeInvalidParams, "malformed message params"))
		return params, false
	}
	if params.Message.MessageID == "" {
		c.JSON(http.StatusOK, errorResponse(req.ID, CodeInvalidParams, "message.messageId is required"))
		return params, false
	}
	return params, true
}

// buildRequest assembles the orchestrator request from the HTTP
// transport: token from the request headers, correlation id from the
// message id. A missing token is not rejected here; the orchestrator
// turns it into an unauthenticated error carrying the requirement.
func (s *Server) buildRequest(c *gin.Context, params MessageSendParams) payments.Request {
	token, _ := payments.ExtractToken(c.GetHeader)

	request := payments.Request{
		CorrelationID: params.Message.MessageID,
		Token:         token,
		Input:         params.Message.Input,
		Overrides: payments.RequirementOverrides{
			PlanID:      params.Message.PlanID,
			ResourceURL: c.Request.URL.Path,
			HTTPVerb:    c.Request.Method,
		},
	}
	if params.Configuration != nil {
		request.Webhook = params.Configuration.Webhook
	}
	return request
}

// paymentError maps protocol errors onto HTTP statuses and JSON-RPC
// error codes. Payment-required responses carry the machine-readable
// requirement in the error data.
func (s *Server) paymentError(c *gin.Context, req RPCRequest, err error) {
	switch payments.ErrorCode(err) {
	case payments.ErrCodeUnauthenticated:
		resp := errorResponse(req.ID, CodeUnauthenticated, err.Error())
		if pe, ok := err.(*payments.PaymentError); ok {
			resp.Error.Data = pe.Details
		}
		c.JSON(http.StatusUnauthorized, resp)
	case payments.ErrCodePaymentRequired:
		resp := errorResponse(req.ID, CodePaymentRequired, err.Error())
		if pe, ok := err.(*payments.PaymentError); ok {
			resp.Error.Data = pe.Details
		}
		c.JSON(http.StatusPaymentRequired, resp)
	case payments.ErrCodeSettlementFailed:
		c.JSON(http.StatusBadGateway, errorResponse(req.ID, CodeInternalError, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse(req.ID, CodeInternalError, err.Error()))
	}
}

func taskStatusFromResult(result *payments.TaskResult) TaskStatus {
	return TaskStatus{
		ID:         result.WorkID,
		State:      string(result.State),
		Payload:    result.Payload,
		Error:      result.Error,
		Settlement: result.Settlement,
	}
}

func okResponse(id json.RawMessage, result interface{}) RPCResponse {
	return RPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) RPCResponse {
	return RPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}
