package raftmap

import (
	proto "github.com/golang/protobuf/proto"
)

const (
	OpSet    int32 = 0
	OpDelete int32 = 1
	OpClear  int32 = 2
)

// Command is one raft log entry. Origin is the id of the member that issued
// it, so the member applying it can tell local mutations from remote ones.
type Command struct {
	Op     int32  `protobuf:"varint,1,opt,name=Op,proto3" json:"Op,omitempty"`
	Key    string `protobuf:"bytes,2,opt,name=Key,proto3" json:"Key,omitempty"`
	Value  string `protobuf:"bytes,3,opt,name=Value,proto3" json:"Value,omitempty"`
	Origin string `protobuf:"bytes,4,opt,name=Origin,proto3" json:"Origin,omitempty"`
}

func (m *Command) Reset()         { *m = Command{} }
func (m *Command) String() string { return proto.CompactTextString(m) }
func (*Command) ProtoMessage()    {}

type KV struct {
	Key   string `protobuf:"bytes,1,opt,name=Key,proto3" json:"Key,omitempty"`
	Value string `protobuf:"bytes,2,opt,name=Value,proto3" json:"Value,omitempty"`
}

func (m *KV) Reset()         { *m = KV{} }
func (m *KV) String() string { return proto.CompactTextString(m) }
func (*KV) ProtoMessage()    {}

type Snapshot struct {
	Entries []*KV `protobuf:"bytes,1,rep,name=Entries,proto3" json:"Entries,omitempty"`
}

func (m *Snapshot) Reset()         { *m = Snapshot{} }
func (m *Snapshot) String() string { return proto.CompactTextString(m) }
func (*Snapshot) ProtoMessage()    {}
