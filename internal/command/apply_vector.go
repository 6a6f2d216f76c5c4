// Vector commands VADD/VSEARCH, not present in the Go reference;
// grounded on original_source's src/cmd/vector/vadd.rs and vsearch.rs.
package command

import (
	"strconv"
	"strings"

	"myredis/internal/resp"
	"myredis/internal/store"
)

func init() {
	registerWrite("vadd", cmdVAdd)
	registerRead("vsearch", cmdVSearch)
}

func getVectors(ks *store.Keyspace, key string) (*store.VectorCollection, bool, resp.Reply) {
	v, ok := ks.Get(key)
	if !ok {
		return nil, false, nil
	}
	if v.Kind != store.KindVector {
		return nil, false, errWrongType()
	}
	return v.Vec, true, nil
}

// VADD key id v1 v2 ... vn
func cmdVAdd(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 4 {
		return errArity("vadd"), false
	}
	key := string(args[1])
	id := string(args[2])
	vec := make([]float64, 0, len(args)-3)
	for _, a := range args[3:] {
		f, err := strconv.ParseFloat(string(a), 64)
		if err != nil {
			return errNotFloat(), false
		}
		vec = append(vec, f)
	}

	vc, ok, errReply := getVectors(ks, key)
	if errReply != nil {
		return errReply, false
	}
	if !ok {
		v := store.NewVector()
		vc = v.Vec
		ks.Insert(key, v)
	}
	if err := vc.Add(id, vec); err != nil {
		return resp.MakeErrReply(err.Error()), false
	}
	return resp.OkReply, true
}

// VSEARCH key v1 v2 ... vn K n — the query vector runs up to the literal
// "K" sentinel, which is followed by the result count.
func cmdVSearch(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) < 5 {
		return errArity("vsearch")
	}
	key := string(args[1])

	idx := 2
	query := make([]float64, 0, len(args)-4)
	for idx < len(args) && !strings.EqualFold(string(args[idx]), "K") {
		f, ferr := strconv.ParseFloat(string(args[idx]), 64)
		if ferr != nil {
			return errNotFloat()
		}
		query = append(query, f)
		idx++
	}
	if len(query) == 0 || idx >= len(args) || !strings.EqualFold(string(args[idx]), "K") {
		return errSyntax()
	}
	idx++
	if idx >= len(args) {
		return errSyntax()
	}
	n, err := strconv.Atoi(string(args[idx]))
	if err != nil {
		return errNotInt()
	}
	idx++
	if idx != len(args) {
		return errSyntax()
	}

	vc, ok, errReply := getVectors(ks, key)
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeMultiReply(nil)
	}
	results, err := vc.Search(query, n)
	if err != nil {
		return resp.MakeErrReply(err.Error())
	}
	replies := make([]resp.Reply, 0, len(results))
	for _, r := range results {
		replies = append(replies, resp.MakeMultiBulkReply([][]byte{
			[]byte(formatFloat(r.Score)),
			[]byte(r.ID),
		}))
	}
	return resp.MakeMultiReply(replies)
}
