package wire

// Convenience constructors for the message shapes the spec enumerates
// in §4. Each returns a Message ready for Encode.

func NewRegister(fileName string, peerPort uint16, chunkCount uint32, hashes []ChunkHash) Message {
	return Message{Header: Header{
		Kind:        MessageCommand,
		Command:     CommandRegister,
		FileName:    fileName,
		PeerPort:    peerPort,
		ChunkCount:  chunkCount,
		ChunkHashes: hashes,
	}}
}

func NewKeepalive(peerPort uint16) Message {
	return Message{Header: Header{
		Kind:     MessageCommand,
		Command:  CommandKeepalive,
		PeerPort: peerPort,
	}}
}

func NewRequest(fileName string) Message {
	return Message{Header: Header{
		Kind:     MessageCommand,
		Command:  CommandRequest,
		FileName: fileName,
	}}
}

func NewGet(fileName string, chunkIndex uint32) Message {
	return Message{Header: Header{
		Kind:       MessageCommand,
		Command:    CommandGet,
		FileName:   fileName,
		ChunkIndex: chunkIndex,
	}}
}

func NewGetCount(fileName string) Message {
	return Message{Header: Header{
		Kind:     MessageCommand,
		Command:  CommandGetCount,
		FileName: fileName,
	}}
}

func NewAck() Message {
	return Message{Header: Header{Kind: MessageControl, Control: ControlAck}}
}

func NewErrorMessage(text string) Message {
	return Message{Header: Header{
		Kind:      MessageControl,
		Control:   ControlError,
		ErrorText: text,
	}}
}

func NewPeerListMessage(peers []PeerEndpoint) Message {
	return Message{Header: Header{
		Kind:     MessageControl,
		Control:  ControlPeerList,
		PeerList: peers,
	}}
}

func NewChunkCountMessage(count uint32) Message {
	return Message{Header: Header{
		Kind:       MessageControl,
		Control:    ControlChunkCount,
		ChunkCount: count,
	}}
}

func NewChunkHashesMessage(hashes []ChunkHash) Message {
	return Message{Header: Header{
		Kind:        MessageControl,
		Control:     ControlChunkHashes,
		ChunkHashes: hashes,
	}}
}

// NewChunkData builds a CONTROL/CHUNK_DATA response whose body carries
// the raw chunk bytes.
func NewChunkData(chunkIndex uint32, data []byte) Message {
	return Message{
		Header: Header{
			Kind:       MessageControl,
			Control:    ControlChunkData,
			ChunkIndex: chunkIndex,
		},
		Body: data,
	}
}
