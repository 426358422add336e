package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/permabft/chain/core/types"
)

// The on-disk record format here is this store's own business: §1 keeps
// "the concrete KV engine's storage format" out of scope, unlike the
// header hash and transaction signing digest, which are protocol-visible
// and live in core/types (encoding.go and transaction.go) instead. A plain length-prefixed
// binary layout is enough; nothing outside this package ever parses it.

var errShortRecord = errors.New("storage: truncated record")

type encoder struct{ buf bytes.Buffer }

func (e *encoder) putBytes(b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	e.buf.Write(lenBuf[:])
	e.buf.Write(b)
}

func (e *encoder) putUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) putByte(v byte) { e.buf.WriteByte(v) }

func (e *encoder) putBigInt(v *big.Int) {
	if v == nil {
		e.putBytes(nil)
		return
	}
	e.putBytes(v.Bytes())
}

type decoder struct{ b []byte }

func (d *decoder) getBytes() ([]byte, error) {
	if len(d.b) < 4 {
		return nil, errShortRecord
	}
	n := binary.BigEndian.Uint32(d.b[:4])
	d.b = d.b[4:]
	if uint64(len(d.b)) < uint64(n) {
		return nil, errShortRecord
	}
	out := d.b[:n]
	d.b = d.b[n:]
	return out, nil
}

func (d *decoder) getUint64() (uint64, error) {
	if len(d.b) < 8 {
		return 0, errShortRecord
	}
	v := binary.BigEndian.Uint64(d.b[:8])
	d.b = d.b[8:]
	return v, nil
}

func (d *decoder) getByte() (byte, error) {
	if len(d.b) < 1 {
		return 0, errShortRecord
	}
	v := d.b[0]
	d.b = d.b[1:]
	return v, nil
}

func (d *decoder) getBigInt() (*big.Int, error) {
	b, err := d.getBytes()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func encodeAccount(acc types.Account) []byte {
	var e encoder
	e.putUint64(acc.Nonce)
	e.putBigInt(acc.Balance)
	e.putBytes(acc.CodeHash[:])
	if acc.StorageRoot != nil {
		e.putByte(1)
		e.putBytes(acc.StorageRoot[:])
	} else {
		e.putByte(0)
	}
	return e.buf.Bytes()
}

func decodeAccount(b []byte) (types.Account, error) {
	d := decoder{b: b}
	nonce, err := d.getUint64()
	if err != nil {
		return types.Account{}, err
	}
	balance, err := d.getBigInt()
	if err != nil {
		return types.Account{}, err
	}
	codeHash, err := d.getBytes()
	if err != nil {
		return types.Account{}, err
	}
	hasRoot, err := d.getByte()
	if err != nil {
		return types.Account{}, err
	}
	acc := types.Account{Nonce: nonce, Balance: balance, CodeHash: types.BytesToHash(codeHash)}
	if hasRoot == 1 {
		root, err := d.getBytes()
		if err != nil {
			return types.Account{}, err
		}
		h := types.BytesToHash(root)
		acc.StorageRoot = &h
	}
	return acc, nil
}

func encodeHeader(h *types.Header) []byte {
	var e encoder
	e.putBytes(h.ParentHash[:])
	e.putBytes(h.OmmersHash[:])
	e.putBytes(h.Beneficiary[:])
	e.putBytes(h.StateRoot[:])
	e.putBytes(h.TransactionsRoot[:])
	e.putBytes(h.ReceiptsRoot[:])
	e.putBytes(h.LogsBloom[:])
	e.putBigInt(h.Difficulty)
	e.putUint64(h.Number)
	e.putUint64(h.GasLimit)
	e.putUint64(h.GasUsed)
	e.putUint64(h.Timestamp)
	e.putBytes(h.ExtraData)
	e.putBytes(h.MixHash[:])
	e.putBytes(h.Nonce[:])
	if h.BaseFeePerGas != nil {
		e.putByte(1)
		e.putBigInt(h.BaseFeePerGas)
	} else {
		e.putByte(0)
	}
	return e.buf.Bytes()
}

func decodeHeader(b []byte) (*types.Header, error) {
	d := decoder{b: b}
	fields := make([][]byte, 7)
	for i := range fields {
		v, err := d.getBytes()
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	h := &types.Header{
		ParentHash:       types.BytesToHash(fields[0]),
		OmmersHash:       types.BytesToHash(fields[1]),
		Beneficiary:      types.BytesToAddress(fields[2]),
		StateRoot:        types.BytesToHash(fields[3]),
		TransactionsRoot: types.BytesToHash(fields[4]),
		ReceiptsRoot:     types.BytesToHash(fields[5]),
	}
	copy(h.LogsBloom[:], fields[6])
	var err error
	if h.Difficulty, err = d.getBigInt(); err != nil {
		return nil, err
	}
	if h.Number, err = d.getUint64(); err != nil {
		return nil, err
	}
	if h.GasLimit, err = d.getUint64(); err != nil {
		return nil, err
	}
	if h.GasUsed, err = d.getUint64(); err != nil {
		return nil, err
	}
	if h.Timestamp, err = d.getUint64(); err != nil {
		return nil, err
	}
	if h.ExtraData, err = d.getBytes(); err != nil {
		return nil, err
	}
	mixHash, err := d.getBytes()
	if err != nil {
		return nil, err
	}
	h.MixHash = types.BytesToHash(mixHash)
	nonceBytes, err := d.getBytes()
	if err != nil {
		return nil, err
	}
	copy(h.Nonce[:], nonceBytes)
	hasBaseFee, err := d.getByte()
	if err != nil {
		return nil, err
	}
	if hasBaseFee == 1 {
		if h.BaseFeePerGas, err = d.getBigInt(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func encodeTx(tx *types.SignedTransaction) []byte {
	var e encoder
	e.putByte(byte(tx.Type))
	e.putUint64(tx.ChainID)
	e.putUint64(tx.Nonce)
	e.putBigInt(tx.GasPrice)
	e.putBigInt(tx.MaxPriorityFeePerGas)
	e.putBigInt(tx.MaxFeePerGas)
	e.putUint64(uint64(len(tx.AccessList)))
	for _, at := range tx.AccessList {
		e.putBytes(at.Address[:])
		e.putUint64(uint64(len(at.StorageKeys)))
		for _, k := range at.StorageKeys {
			e.putBytes(k[:])
		}
	}
	e.putUint64(tx.GasLimit)
	if tx.To != nil {
		e.putByte(1)
		e.putBytes(tx.To[:])
	} else {
		e.putByte(0)
	}
	e.putBigInt(tx.Value)
	e.putBytes(tx.Data)
	e.putByte(tx.V)
	e.putBytes(tx.R[:])
	e.putBytes(tx.S[:])
	return e.buf.Bytes()
}

func decodeTx(b []byte) (*types.SignedTransaction, error) {
	d := decoder{b: b}
	typeByte, err := d.getByte()
	if err != nil {
		return nil, err
	}
	tx := &types.SignedTransaction{Type: types.TxType(typeByte)}
	if tx.ChainID, err = d.getUint64(); err != nil {
		return nil, err
	}
	if tx.Nonce, err = d.getUint64(); err != nil {
		return nil, err
	}
	if tx.GasPrice, err = d.getBigInt(); err != nil {
		return nil, err
	}
	if tx.MaxPriorityFeePerGas, err = d.getBigInt(); err != nil {
		return nil, err
	}
	if tx.MaxFeePerGas, err = d.getBigInt(); err != nil {
		return nil, err
	}
	n, err := d.getUint64()
	if err != nil {
		return nil, err
	}
	tx.AccessList = make([]types.AccessTuple, n)
	for i := range tx.AccessList {
		addrB, err := d.getBytes()
		if err != nil {
			return nil, err
		}
		tx.AccessList[i].Address = types.BytesToAddress(addrB)
		nk, err := d.getUint64()
		if err != nil {
			return nil, err
		}
		tx.AccessList[i].StorageKeys = make([]types.Hash256, nk)
		for j := range tx.AccessList[i].StorageKeys {
			kb, err := d.getBytes()
			if err != nil {
				return nil, err
			}
			tx.AccessList[i].StorageKeys[j] = types.BytesToHash(kb)
		}
	}
	if tx.GasLimit, err = d.getUint64(); err != nil {
		return nil, err
	}
	hasTo, err := d.getByte()
	if err != nil {
		return nil, err
	}
	if hasTo == 1 {
		toB, err := d.getBytes()
		if err != nil {
			return nil, err
		}
		to := types.BytesToAddress(toB)
		tx.To = &to
	}
	if tx.Value, err = d.getBigInt(); err != nil {
		return nil, err
	}
	if tx.Data, err = d.getBytes(); err != nil {
		return nil, err
	}
	if tx.V, err = d.getByte(); err != nil {
		return nil, err
	}
	rBytes, err := d.getBytes()
	if err != nil {
		return nil, err
	}
	copy(tx.R[:], rBytes)
	sBytes, err := d.getBytes()
	if err != nil {
		return nil, err
	}
	copy(tx.S[:], sBytes)
	return tx, nil
}

func encodeBody(body types.Body) []byte {
	var e encoder
	e.putUint64(uint64(len(body.Transactions)))
	for _, tx := range body.Transactions {
		e.putBytes(encodeTx(tx))
	}
	return e.buf.Bytes()
}

func decodeBody(b []byte) (types.Body, error) {
	d := decoder{b: b}
	n, err := d.getUint64()
	if err != nil {
		return types.Body{}, err
	}
	body := types.Body{Transactions: make([]*types.SignedTransaction, n)}
	for i := range body.Transactions {
		raw, err := d.getBytes()
		if err != nil {
			return types.Body{}, err
		}
		tx, err := decodeTx(raw)
		if err != nil {
			return types.Body{}, err
		}
		body.Transactions[i] = tx
	}
	return body, nil
}

func encodeReceipts(receipts []*types.Receipt) []byte {
	var e encoder
	e.putUint64(uint64(len(receipts)))
	for _, r := range receipts {
		var re encoder
		re.putByte(byte(r.Status))
		re.putUint64(r.CumulativeGasUsed)
		re.putUint64(r.GasUsed)
		re.putBytes(r.LogsBloom[:])
		re.putUint64(uint64(len(r.Logs)))
		for _, lg := range r.Logs {
			re.putBytes(lg.Address[:])
			re.putUint64(uint64(len(lg.Topics)))
			for _, t := range lg.Topics {
				re.putBytes(t[:])
			}
			re.putBytes(lg.Data)
		}
		if r.ContractAddress != nil {
			re.putByte(1)
			re.putBytes(r.ContractAddress[:])
		} else {
			re.putByte(0)
		}
		re.putBytes(r.TxHash[:])
		e.putBytes(re.buf.Bytes())
	}
	return e.buf.Bytes()
}

func decodeReceipts(b []byte) ([]*types.Receipt, error) {
	d := decoder{b: b}
	n, err := d.getUint64()
	if err != nil {
		return nil, err
	}
	out := make([]*types.Receipt, n)
	for i := range out {
		raw, err := d.getBytes()
		if err != nil {
			return nil, err
		}
		rd := decoder{b: raw}
		statusB, err := rd.getByte()
		if err != nil {
			return nil, err
		}
		r := &types.Receipt{Status: types.ReceiptStatus(statusB)}
		if r.CumulativeGasUsed, err = rd.getUint64(); err != nil {
			return nil, err
		}
		if r.GasUsed, err = rd.getUint64(); err != nil {
			return nil, err
		}
		bloomB, err := rd.getBytes()
		if err != nil {
			return nil, err
		}
		copy(r.LogsBloom[:], bloomB)
		nl, err := rd.getUint64()
		if err != nil {
			return nil, err
		}
		r.Logs = make([]types.Log, nl)
		for j := range r.Logs {
			addrB, err := rd.getBytes()
			if err != nil {
				return nil, err
			}
			r.Logs[j].Address = types.BytesToAddress(addrB)
			nt, err := rd.getUint64()
			if err != nil {
				return nil, err
			}
			r.Logs[j].Topics = make([]types.Hash256, nt)
			for k := range r.Logs[j].Topics {
				tb, err := rd.getBytes()
				if err != nil {
					return nil, err
				}
				r.Logs[j].Topics[k] = types.BytesToHash(tb)
			}
			if r.Logs[j].Data, err = rd.getBytes(); err != nil {
				return nil, err
			}
		}
		hasContract, err := rd.getByte()
		if err != nil {
			return nil, err
		}
		if hasContract == 1 {
			cb, err := rd.getBytes()
			if err != nil {
				return nil, err
			}
			addr := types.BytesToAddress(cb)
			r.ContractAddress = &addr
		}
		txHashB, err := rd.getBytes()
		if err != nil {
			return nil, err
		}
		r.TxHash = types.BytesToHash(txHashB)
		out[i] = r
	}
	return out, nil
}
