package rpc

import (
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
)

const DefaultMaxDepth = 5000

type ValidationServiceConfig struct {
	// MaxDepth caps the levels per side a snapshot request may ask for.
	MaxDepth int
}

type ValidationService struct {
	config *ValidationServiceConfig
}

func NewValidationService(config *ValidationServiceConfig) *ValidationService {
	if config == nil {
		config = &ValidationServiceConfig{}
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	return &ValidationService{
		config: config,
	}
}

type SnapshotRequest struct {
	Symbol   string
	MaxDepth int
}

// SnapshotRequest reads {symbol, maxDepth}. A missing maxDepth means the
// whole book.
func (s *ValidationService) SnapshotRequest(in *structpb.Struct) (*SnapshotRequest, error) {
	fields := in.GetFields()

	symbolValue, ok := fields["symbol"]
	if !ok {
		return nil, fmt.Errorf("symbol is required")
	}
	symbol, ok := symbolValue.GetKind().(*structpb.Value_StringValue)
	if !ok || strings.TrimSpace(symbol.StringValue) == "" {
		return nil, fmt.Errorf("symbol must be a non-empty string")
	}

	req := &SnapshotRequest{Symbol: symbol.StringValue}

	depthValue, ok := fields["maxDepth"]
	if !ok {
		return req, nil
	}
	depth, ok := depthValue.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, fmt.Errorf("maxDepth must be a number")
	}
	if depth.NumberValue < 0 || depth.NumberValue != math.Trunc(depth.NumberValue) {
		return nil, fmt.Errorf("maxDepth must be a non-negative integer")
	}
	if depth.NumberValue > float64(s.config.MaxDepth) {
		return nil, fmt.Errorf("maxDepth must not exceed %d", s.config.MaxDepth)
	}
	req.MaxDepth = int(depth.NumberValue)
	return req, nil
}
