package wire

import (
	"testing"

	"github.com/auxroom/auxcast/internal/domain"
)

func TestDecodeDispatchesByType(t *testing.T) {
	cases := []Message{
		Share{Payload: "p", Kind: domain.KindAudio, DisplayName: "n", AddedBy: "a"},
		Chunk{TransferID: "t", Index: 2, TotalFrames: 5, Data: "d", Meta: Meta{DisplayName: "n", Kind: domain.KindAudio, AddedBy: "a"}},
		RequestSync{},
		Control{Action: ActionPlay},
		Reaction{Symbol: "🔥", Sender: "bob"},
	}
	for _, msg := range cases {
		data, err := Encode(msg)
		if err != nil {
			t.Fatalf("encode %T: %v", msg, err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("decode %T: %v", msg, err)
		}
		if got.WireType() != msg.WireType() {
			t.Fatalf("decoded as %q, want %q", got.WireType(), msg.WireType())
		}
	}
}

func TestDecodeChunkFields(t *testing.T) {
	data, err := Encode(Chunk{TransferID: "t1", Index: 3, TotalFrames: 9, Data: "xyz", Meta: Meta{DisplayName: "song", Kind: domain.KindAudio, AddedBy: "carol"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	chunk, ok := msg.(Chunk)
	if !ok {
		t.Fatalf("got %T", msg)
	}
	if chunk.TransferID != "t1" || chunk.Index != 3 || chunk.TotalFrames != 9 || chunk.Data != "xyz" {
		t.Fatalf("chunk fields: %+v", chunk)
	}
	if chunk.Meta.AddedBy != "carol" {
		t.Fatalf("chunk meta: %+v", chunk.Meta)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Fatal("malformed json accepted")
	}
	if _, err := Decode([]byte(`{"type":"mystery"}`)); err == nil {
		t.Fatal("unknown type accepted")
	}
}

func TestShareItem(t *testing.T) {
	s := Share{Payload: "ref", Kind: domain.KindEmbeddedVideo, DisplayName: "clip", ExternalID: "yt:abc", AddedBy: "dan"}
	item := s.Item()
	if item.Payload != "ref" || item.Kind != domain.KindEmbeddedVideo || item.ExternalID != "yt:abc" || item.AddedBy != "dan" {
		t.Fatalf("item fields: %+v", item)
	}
}
