package transport

import (
	"bytes"
	"encoding/gob"
	"time"

	"chordmesh/internal/relay"
	"chordmesh/internal/ring"
)

func init() {
	gob.Register(relay.ConnectNode{})
	gob.Register(relay.ConnectedNode{})
	gob.Register(relay.AlreadyConnected{})
	gob.Register(relay.FindSuccessor{})
	gob.Register(relay.FoundSuccessor{})
	gob.Register(relay.NotifyPredecessor{})
	gob.Register(relay.NotifiedPredecessor{})
	gob.Register(relay.Ping{})
	gob.Register(relay.Pong{})
	gob.Register(relay.QuerySuccessorList{})
	gob.Register(relay.SuccessorListReply{})
	gob.Register(relay.StoreResource{})
	gob.Register(relay.StoredResource{})
	gob.Register(relay.RetrieveResource{})
	gob.Register(relay.RetrievedResource{})
	gob.Register(relay.RemoveResource{})
	gob.Register(relay.RemovedResource{})
}

// wireEnvelope is the on-the-wire shape of relay.Envelope: the deques
// flatten to plain slices for gob, and the TTL becomes a unix-ms
// timestamp per spec.md §6.
type wireEnvelope struct {
	TxID          string
	MessageID     string
	Method        relay.Method
	ToPath        []ring.Id
	FromPath      []ring.Id
	Payload       relay.Payload
	OriginAddress ring.Id
	Signature     []byte
	TTLUnixMilli  int64
}

func deqToSlice(lenFn func() int, atFn func(int) ring.Id) []ring.Id {
	n := lenFn()
	out := make([]ring.Id, n)
	for i := 0; i < n; i++ {
		out[i] = atFn(i)
	}
	return out
}

// Encode serializes env for transmission.
func Encode(env *relay.Envelope) ([]byte, error) {
	w := wireEnvelope{
		TxID:          env.TxID,
		MessageID:     env.MessageID,
		Method:        env.Method,
		ToPath:        deqToSlice(env.ToPath.Len, env.ToPath.At),
		FromPath:      deqToSlice(env.FromPath.Len, env.FromPath.At),
		Payload:       env.Payload,
		OriginAddress: env.OriginAddress,
		Signature:     env.Signature,
		TTLUnixMilli:  env.TTLDeadline.UnixMilli(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reconstructs an Envelope from wire bytes.
func Decode(data []byte) (*relay.Envelope, error) {
	var w wireEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, err
	}
	env := &relay.Envelope{
		TxID:          w.TxID,
		MessageID:     w.MessageID,
		Method:        w.Method,
		Payload:       w.Payload,
		OriginAddress: w.OriginAddress,
		Signature:     w.Signature,
		TTLDeadline:   time.UnixMilli(w.TTLUnixMilli),
	}
	for _, v := range w.ToPath {
		env.ToPath.PushBack(v)
	}
	for _, v := range w.FromPath {
		env.FromPath.PushBack(v)
	}
	return env, nil
}
