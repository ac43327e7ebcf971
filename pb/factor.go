// Package pb holds the wire messages of factor.proto.
// The structs carry protobuf tags so gogo/protobuf marshals them by reflection.
package pb

import (
	"github.com/gogo/protobuf/proto"
)

type FactorRequest_Op int32

const (
	FactorRequest_FACTOR          FactorRequest_Op = 0
	FactorRequest_ROOTS           FactorRequest_Op = 1
	FactorRequest_SQUARE_FREE     FactorRequest_Op = 2
	FactorRequest_DISTINCT_DEGREE FactorRequest_Op = 3
	FactorRequest_COUNT           FactorRequest_Op = 4
)

var FactorRequest_Op_name = map[int32]string{
	0: "FACTOR",
	1: "ROOTS",
	2: "SQUARE_FREE",
	3: "DISTINCT_DEGREE",
	4: "COUNT",
}

var FactorRequest_Op_value = map[string]int32{
	"FACTOR":          0,
	"ROOTS":           1,
	"SQUARE_FREE":     2,
	"DISTINCT_DEGREE": 3,
	"COUNT":           4,
}

func (x FactorRequest_Op) Enum() *FactorRequest_Op {
	p := new(FactorRequest_Op)
	*p = x
	return p
}

func (x FactorRequest_Op) String() string {
	return proto.EnumName(FactorRequest_Op_name, int32(x))
}

func (x *FactorRequest_Op) UnmarshalJSON(data []byte) error {
	value, err := proto.UnmarshalJSONEnum(FactorRequest_Op_value, data, "FactorRequest_Op")
	if err != nil {
		return err
	}
	*x = FactorRequest_Op(value)
	return nil
}

type Polynomial struct {
	Coefficients         [][]byte `protobuf:"bytes,1,rep,name=coefficients" json:"coefficients,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *Polynomial) Reset()         { *m = Polynomial{} }
func (m *Polynomial) String() string { return proto.CompactTextString(m) }
func (*Polynomial) ProtoMessage()    {}

func (m *Polynomial) GetCoefficients() [][]byte {
	if m != nil {
		return m.Coefficients
	}
	return nil
}

type FactorRequest struct {
	JobId                *uint64           `protobuf:"varint,1,opt,name=job_id,json=jobId" json:"job_id,omitempty"`
	Op                   *FactorRequest_Op `protobuf:"varint,2,opt,name=op,enum=pb.FactorRequest_Op" json:"op,omitempty"`
	Coefficients         [][]byte          `protobuf:"bytes,3,rep,name=coefficients" json:"coefficients,omitempty"`
	TimeoutMs            *uint32           `protobuf:"varint,4,opt,name=timeout_ms,json=timeoutMs" json:"timeout_ms,omitempty"`
	XXX_NoUnkeyedLiteral struct{}          `json:"-"`
	XXX_unrecognized     []byte            `json:"-"`
	XXX_sizecache        int32             `json:"-"`
}

func (m *FactorRequest) Reset()         { *m = FactorRequest{} }
func (m *FactorRequest) String() string { return proto.CompactTextString(m) }
func (*FactorRequest) ProtoMessage()    {}

func (m *FactorRequest) GetJobId() uint64 {
	if m != nil && m.JobId != nil {
		return *m.JobId
	}
	return 0
}

func (m *FactorRequest) GetOp() FactorRequest_Op {
	if m != nil && m.Op != nil {
		return *m.Op
	}
	return FactorRequest_FACTOR
}

func (m *FactorRequest) GetCoefficients() [][]byte {
	if m != nil {
		return m.Coefficients
	}
	return nil
}

func (m *FactorRequest) GetTimeoutMs() uint32 {
	if m != nil && m.TimeoutMs != nil {
		return *m.TimeoutMs
	}
	return 0
}

type FactorResponse struct {
	JobId                *uint64       `protobuf:"varint,1,opt,name=job_id,json=jobId" json:"job_id,omitempty"`
	Factors              []*Polynomial `protobuf:"bytes,2,rep,name=factors" json:"factors,omitempty"`
	Degrees              []uint32      `protobuf:"varint,3,rep,name=degrees" json:"degrees,omitempty"`
	Roots                [][]byte      `protobuf:"bytes,4,rep,name=roots" json:"roots,omitempty"`
	Count                *uint32       `protobuf:"varint,5,opt,name=count" json:"count,omitempty"`
	Error                *string       `protobuf:"bytes,6,opt,name=error" json:"error,omitempty"`
	XXX_NoUnkeyedLiteral struct{}      `json:"-"`
	XXX_unrecognized     []byte        `json:"-"`
	XXX_sizecache        int32         `json:"-"`
}

func (m *FactorResponse) Reset()         { *m = FactorResponse{} }
func (m *FactorResponse) String() string { return proto.CompactTextString(m) }
func (*FactorResponse) ProtoMessage()    {}

func (m *FactorResponse) GetJobId() uint64 {
	if m != nil && m.JobId != nil {
		return *m.JobId
	}
	return 0
}

func (m *FactorResponse) GetFactors() []*Polynomial {
	if m != nil {
		return m.Factors
	}
	return nil
}

func (m *FactorResponse) GetDegrees() []uint32 {
	if m != nil {
		return m.Degrees
	}
	return nil
}

func (m *FactorResponse) GetRoots() [][]byte {
	if m != nil {
		return m.Roots
	}
	return nil
}

func (m *FactorResponse) GetCount() uint32 {
	if m != nil && m.Count != nil {
		return *m.Count
	}
	return 0
}

func (m *FactorResponse) GetError() string {
	if m != nil && m.Error != nil {
		return *m.Error
	}
	return ""
}

func init() {
	proto.RegisterEnum("pb.FactorRequest_Op", FactorRequest_Op_name, FactorRequest_Op_value)
	proto.RegisterType((*Polynomial)(nil), "pb.Polynomial")
	proto.RegisterType((*FactorRequest)(nil), "pb.FactorRequest")
	proto.RegisterType((*FactorResponse)(nil), "pb.FactorResponse")
}
