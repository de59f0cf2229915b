package badgerdb

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/trailhq/trailstore/pkg/location"
)

// Key layout. Every partition owns a keyspace under "p:<id>:". The kind
// byte after that realizes the partition's index set:
//
//	m:<id>                                          partition manifest (spec)
//	p:<id>:r:<subject 8><ts 8><uid 16>              primary (subject, timestamp) index
//	p:<id>:g:<subject 8><cell 8><ts 8><uid 16>      geospatial index
//	p:<id>:s:<subject 8><src 1><ts 8><uid 16>       (subject, source, timestamp) index
//
// Subject is an xxhash64 of the subject id; timestamps are big-endian
// UnixNano so keys sort chronologically within a subject. The uid suffix
// keeps records with identical (subject, timestamp) distinct.

const uidLen = 16

func manifestKey(id string) []byte {
	return []byte("m:" + id)
}

func dataPrefix(id string) []byte {
	return []byte("p:" + id + ":")
}

func recSubjectPrefix(id, subjectID string) []byte {
	key := append([]byte("p:"+id+":r:"), subjectHash(subjectID)...)
	return key
}

func geoSubjectPrefix(id, subjectID string) []byte {
	return append([]byte("p:"+id+":g:"), subjectHash(subjectID)...)
}

func srcSubjectPrefix(id, subjectID string) []byte {
	return append([]byte("p:"+id+":s:"), subjectHash(subjectID)...)
}

func recKey(id string, rec *location.Record, uid [uidLen]byte) []byte {
	key := recSubjectPrefix(id, rec.SubjectID)
	key = append(key, tsBytes(rec.Timestamp)...)
	return append(key, uid[:]...)
}

func geoKey(id string, rec *location.Record, uid [uidLen]byte) []byte {
	key := geoSubjectPrefix(id, rec.SubjectID)
	key = append(key, geoCell(rec.Position)...)
	key = append(key, tsBytes(rec.Timestamp)...)
	return append(key, uid[:]...)
}

func srcKey(id string, rec *location.Record, uid [uidLen]byte) []byte {
	key := srcSubjectPrefix(id, rec.SubjectID)
	key = append(key, sourceByte(rec.Source))
	key = append(key, tsBytes(rec.Timestamp)...)
	return append(key, uid[:]...)
}

func subjectHash(subjectID string) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], xxhash.Sum64String(subjectID))
	return b[:]
}

func tsBytes(ts time.Time) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(ts.UnixNano()))
	return b[:]
}

// tsFromKey reads the timestamp from a primary key given the length of the
// subject prefix that precedes it.
func tsFromKey(key []byte, prefixLen int) time.Time {
	nano := binary.BigEndian.Uint64(key[prefixLen : prefixLen+8])
	return time.Unix(0, int64(nano))
}

// geoCell quantizes a position to a ~1.1 km grid cell (0.01 degree). The
// cell id packs the longitude and latitude cell indices into 8 bytes.
func geoCell(p location.Position) []byte {
	lonCell := uint32((p.Longitude + 180) * 100)
	latCell := uint32((p.Latitude + 90) * 100)

	var b [8]byte
	binary.BigEndian.PutUint32(b[0:4], lonCell)
	binary.BigEndian.PutUint32(b[4:8], latCell)
	return b[:]
}

func sourceByte(s location.Source) byte {
	switch s {
	case location.SourceGPS:
		return 1
	case location.SourceNetwork:
		return 2
	case location.SourceManual:
		return 3
	case location.SourceIoTDevice:
		return 4
	case location.SourceEmergency:
		return 5
	}
	return 0
}
