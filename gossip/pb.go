package gossip

import (
	proto "github.com/golang/protobuf/proto"
)

// Entry is one replicated key. Removed keys stay around as tombstones until
// garbage collected.
type Entry struct {
	Key         string `protobuf:"bytes,1,opt,name=Key,proto3" json:"Key,omitempty"`
	Value       string `protobuf:"bytes,2,opt,name=Value,proto3" json:"Value,omitempty"`
	LastAdded   int64  `protobuf:"varint,3,opt,name=LastAdded,proto3" json:"LastAdded,omitempty"`
	LastDeleted int64  `protobuf:"varint,4,opt,name=LastDeleted,proto3" json:"LastDeleted,omitempty"`
}

func (m *Entry) Reset()         { *m = Entry{} }
func (m *Entry) String() string { return proto.CompactTextString(m) }
func (*Entry) ProtoMessage()    {}

func (m *Entry) GetKey() string {
	if m != nil {
		return m.Key
	}
	return ""
}
func (m *Entry) GetValue() string {
	if m != nil {
		return m.Value
	}
	return ""
}
func (m *Entry) GetLastAdded() int64 {
	if m != nil {
		return m.LastAdded
	}
	return 0
}
func (m *Entry) GetLastDeleted() int64 {
	if m != nil {
		return m.LastDeleted
	}
	return 0
}

type EntryList struct {
	Entries []*Entry `protobuf:"bytes,1,rep,name=Entries,proto3" json:"Entries,omitempty"`
}

func (m *EntryList) Reset()         { *m = EntryList{} }
func (m *EntryList) String() string { return proto.CompactTextString(m) }
func (*EntryList) ProtoMessage()    {}

// Part is a state payload addressed to one named state of a layer.
type Part struct {
	Key  string `protobuf:"bytes,1,opt,name=Key,proto3" json:"Key,omitempty"`
	Data []byte `protobuf:"bytes,2,opt,name=Data,proto3" json:"Data,omitempty"`
}

func (m *Part) Reset()         { *m = Part{} }
func (m *Part) String() string { return proto.CompactTextString(m) }
func (*Part) ProtoMessage()    {}

type FullState struct {
	Parts []*Part `protobuf:"bytes,1,rep,name=Parts,proto3" json:"Parts,omitempty"`
}

func (m *FullState) Reset()         { *m = FullState{} }
func (m *FullState) String() string { return proto.CompactTextString(m) }
func (*FullState) ProtoMessage()    {}
