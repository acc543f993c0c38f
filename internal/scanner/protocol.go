package scanner

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Minimal command set for ZFM-20 compatible optical sensors, the family the
// default 57600 baud targets. Only the operations the adapter needs are
// implemented: password verification, image capture and conversion,
// characteristic transfer, and flash template store/delete.

const (
	packetHeader = 0xEF01

	packetTypeCommand = 0x01
	packetTypeData    = 0x02
	packetTypeAck     = 0x07
	packetTypeEndData = 0x08

	cmdVerifyPassword = 0x13
	cmdGetImage       = 0x01
	cmdImageToChar    = 0x02
	cmdUpChar         = 0x08
	cmdDownChar       = 0x09
	cmdStoreChar      = 0x06
	cmdDeleteChar     = 0x0C
	cmdTemplateCount  = 0x1D

	ackOK       = 0x00
	ackNoFinger = 0x02

	charBuffer1 = 0x01
)

var sensorAddress = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}

func writePacket(w io.Writer, packetType byte, payload []byte) error {
	length := len(payload) + 2 // payload + checksum
	buf := make([]byte, 0, 9+length)
	buf = binary.BigEndian.AppendUint16(buf, packetHeader)
	buf = append(buf, sensorAddress[:]...)
	buf = append(buf, packetType)
	buf = binary.BigEndian.AppendUint16(buf, uint16(length))

	sum := uint16(packetType) + uint16(length>>8) + uint16(length&0xFF)
	for _, b := range payload {
		sum += uint16(b)
	}
	buf = append(buf, payload...)
	buf = binary.BigEndian.AppendUint16(buf, sum)

	_, err := w.Write(buf)
	return err
}

func readPacket(r io.Reader) (packetType byte, payload []byte, err error) {
	head := make([]byte, 9)
	if _, err = io.ReadFull(r, head); err != nil {
		return 0, nil, err
	}
	if binary.BigEndian.Uint16(head[0:2]) != packetHeader {
		return 0, nil, fmt.Errorf("bad packet header % x", head[0:2])
	}
	packetType = head[6]
	length := int(binary.BigEndian.Uint16(head[7:9]))
	if length < 2 {
		return 0, nil, fmt.Errorf("bad packet length %d", length)
	}

	body := make([]byte, length)
	if _, err = io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return packetType, body[:length-2], nil // strip checksum
}

func command(rw io.ReadWriter, payload []byte) (byte, []byte, error) {
	if err := writePacket(rw, packetTypeCommand, payload); err != nil {
		return 0, nil, err
	}
	packetType, body, err := readPacket(rw)
	if err != nil {
		return 0, nil, err
	}
	if packetType != packetTypeAck || len(body) == 0 {
		return 0, nil, fmt.Errorf("expected ack packet, got type %#x", packetType)
	}
	return body[0], body[1:], nil
}

// handshake verifies the default sensor password. Any unexpected answer marks
// the hardware unusable and triggers the demo fallback.
func handshake(rw io.ReadWriter) error {
	ack, _, err := command(rw, []byte{cmdVerifyPassword, 0x00, 0x00, 0x00, 0x00})
	if err != nil {
		return err
	}
	if ack != ackOK {
		return fmt.Errorf("password rejected, ack %#x", ack)
	}
	return nil
}

// readImage performs one capture poll. ready=false means no finger on the
// sensor yet; the adapter's capture loop keeps polling until its deadline.
func readImage(rw io.ReadWriter) (characteristics []int32, ready bool, err error) {
	ack, _, err := command(rw, []byte{cmdGetImage})
	if err != nil {
		return nil, false, err
	}
	if ack == ackNoFinger {
		return nil, false, nil
	}
	if ack != ackOK {
		return nil, false, fmt.Errorf("get image failed, ack %#x", ack)
	}

	if ack, _, err = command(rw, []byte{cmdImageToChar, charBuffer1}); err != nil {
		return nil, false, err
	} else if ack != ackOK {
		return nil, false, fmt.Errorf("image conversion failed, ack %#x", ack)
	}

	raw, err := upChar(rw)
	if err != nil {
		return nil, false, err
	}
	characteristics = make([]int32, len(raw))
	for i, b := range raw {
		characteristics[i] = int32(b)
	}
	return characteristics, true, nil
}

// upChar drains the data packets holding the characteristic buffer.
func upChar(rw io.ReadWriter) ([]byte, error) {
	ack, _, err := command(rw, []byte{cmdUpChar, charBuffer1})
	if err != nil {
		return nil, err
	}
	if ack != ackOK {
		return nil, fmt.Errorf("up char failed, ack %#x", ack)
	}

	var raw []byte
	for {
		packetType, payload, err := readPacket(rw)
		if err != nil {
			return nil, err
		}
		switch packetType {
		case packetTypeData:
			raw = append(raw, payload...)
		case packetTypeEndData:
			raw = append(raw, payload...)
			return raw, nil
		default:
			return nil, fmt.Errorf("unexpected packet type %#x during char upload", packetType)
		}
	}
}

// storeTemplate writes characteristics into the next free flash page and
// returns its index.
func storeTemplate(rw io.ReadWriter, characteristics []int32) (int, error) {
	ack, body, err := command(rw, []byte{cmdTemplateCount})
	if err != nil {
		return -1, err
	}
	if ack != ackOK || len(body) < 2 {
		return -1, fmt.Errorf("template count failed, ack %#x", ack)
	}
	slot := int(binary.BigEndian.Uint16(body[0:2]))

	if ack, _, err = command(rw, []byte{cmdDownChar, charBuffer1}); err != nil {
		return -1, err
	} else if ack != ackOK {
		return -1, fmt.Errorf("down char failed, ack %#x", ack)
	}

	raw := make([]byte, len(characteristics))
	for i, c := range characteristics {
		raw[i] = byte(c)
	}
	if err = writePacket(rw, packetTypeEndData, raw); err != nil {
		return -1, err
	}

	payload := []byte{cmdStoreChar, charBuffer1, byte(slot >> 8), byte(slot & 0xFF)}
	if ack, _, err = command(rw, payload); err != nil {
		return -1, err
	} else if ack != ackOK {
		return -1, fmt.Errorf("store char failed, ack %#x", ack)
	}
	return slot, nil
}

// deleteTemplate removes one flash page.
func deleteTemplate(rw io.ReadWriter, slot int) error {
	payload := []byte{cmdDeleteChar, byte(slot >> 8), byte(slot & 0xFF), 0x00, 0x01}
	ack, _, err := command(rw, payload)
	if err != nil {
		return err
	}
	if ack != ackOK {
		return fmt.Errorf("delete failed, ack %#x", ack)
	}
	return nil
}
