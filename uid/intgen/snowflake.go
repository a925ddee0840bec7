package intgen

import (
	"context"
	"net"
	"sync/atomic"
	"time"
)

type SnowflakeOptions struct {
	// MachineID 为空时取本机 IPv4 的后两个字节
	MachineID *int64 `cfg:"machineID"`
}

// SnowflakeSequence 本地生成的全局唯一整数，所有序列名共用一个生成器；
// 结构为 41 位时间戳、10 位机器号、12 位序号
type SnowflakeSequence struct {
	state     int64 // 高位时间戳，低 12 位序号
	machineID int64
	epoch     int64
}

const (
	sequenceBits  = 12
	machineIDBits = 10

	maxSequence  = (1 << sequenceBits) - 1
	maxMachineID = (1 << machineIDBits) - 1

	machineIDShift = sequenceBits
	timestampShift = sequenceBits + machineIDBits
)

var snowflakeEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

func NewSnowflakeSequence(options *SnowflakeOptions) *SnowflakeSequence {
	machineID := localMachineID()
	if options != nil && options.MachineID != nil {
		machineID = *options.MachineID
	}
	return &SnowflakeSequence{
		state:     (time.Now().UnixMilli() - snowflakeEpoch) << sequenceBits,
		machineID: machineID & maxMachineID,
		epoch:     snowflakeEpoch,
	}
}

func localMachineID() int64 {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return 0
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip := ipnet.IP.To4(); ip != nil {
			return int64(ip[2])<<8 | int64(ip[3])
		}
	}
	return 0
}

func (s *SnowflakeSequence) Next(ctx context.Context, name string) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	return s.Generate(), nil
}

// Generate CAS 更新状态，同一毫秒内序号用尽时等待下一毫秒
func (s *SnowflakeSequence) Generate() int64 {
	for {
		old := atomic.LoadInt64(&s.state)
		oldTs, oldSeq := old>>sequenceBits, old&maxSequence
		ts := time.Now().UnixMilli() - s.epoch

		seq := int64(0)
		switch {
		case ts < oldTs:
			// 时钟回拨，沿用旧时间戳
			ts = oldTs
			fallthrough
		case ts == oldTs:
			seq = (oldSeq + 1) & maxSequence
			if seq == 0 {
				for ts <= oldTs {
					ts = time.Now().UnixMilli() - s.epoch
				}
			}
		}

		if atomic.CompareAndSwapInt64(&s.state, old, ts<<sequenceBits|seq) {
			return ts<<timestampShift | s.machineID<<machineIDShift | seq
		}
	}
}
