/*
Package server implements msgpack IPC for the prediction engine.

The server speaks a binary msgpack stream over stdin/stdout: the host
application process writes request envelopes, the server answers each with
exactly one response. Requests are handled concurrently, so responses come
back in completion order and clients must correlate them by ID. Requests
without an ID get a server-assigned one.

# IPC

Every request is one envelope whose "op" field selects the operation:

	{"op": "predict", "id": "q1", "in": "he", "l": 10}

Predictions come back ranked, with the score after boosting and the query
latency in microseconds:

	{"id": "q1", "s": [{"w": "hello", "s": 1.43, "r": 1}], "c": 1, "lang": "en", "t": 912}

Accepted suggestions feed the learning loop:

	{"op": "select", "id": "s1", "w": "hello", "in": "he"}

Language control and dictionary management ride the same stream:

	{"op": "lang", "id": "l1", "lang": "ja"}
	{"op": "dict", "id": "d1", "action": "add", "w": "辞書", "rd": "ジショ"}
	{"op": "dict", "id": "d2", "action": "export"}

The predict handler also routes languages automatically: input whose script
no longer matches the active language switches the engine before the query
runs, the same way an editor text-change event would.

Dict actions: "add", "remove", "clear", "stats", "export", "import",
"reload". Export and import carry the dictionary CSV in the "data" field.
"unload" releases every loaded model, the response to host memory pressure.
"health" reports liveness and the active language.

Errors carry a code modeled on HTTP: 400 for requests the server refuses to
run, 500 when an operation fails midway.
*/
package server

// Request is the single envelope for every client operation.
type Request struct {
	ID      string `msgpack:"id,omitempty"`
	Op      string `msgpack:"op"`
	Input   string `msgpack:"in,omitempty"`
	Limit   int    `msgpack:"l,omitempty"`
	Word    string `msgpack:"w,omitempty"`
	Reading string `msgpack:"rd,omitempty"`
	Lang    string `msgpack:"lang,omitempty"`
	Action  string `msgpack:"action,omitempty"`
	Data    string `msgpack:"data,omitempty"`
}

// PredictedWord is one ranked suggestion in a response.
type PredictedWord struct {
	Word  string  `msgpack:"w"`
	Score float64 `msgpack:"s"`
	Rank  uint16  `msgpack:"r"`
}

// PredictResponse answers a predict op.
type PredictResponse struct {
	ID          string          `msgpack:"id"`
	Suggestions []PredictedWord `msgpack:"s"`
	Count       int             `msgpack:"c"`
	Lang        string          `msgpack:"lang"`
	TimeTaken   int64           `msgpack:"t"`
}

// StatusResponse answers ops that only need an acknowledgement.
type StatusResponse struct {
	ID     string `msgpack:"id,omitempty"`
	Status string `msgpack:"status"`
	Lang   string `msgpack:"lang,omitempty"`
	Count  int    `msgpack:"c,omitempty"`
}

// DictResponse answers dictionary management ops.
type DictResponse struct {
	ID       string `msgpack:"id"`
	Status   string `msgpack:"status"`
	Count    int    `msgpack:"c,omitempty"`
	Data     string `msgpack:"data,omitempty"`
	Degraded bool   `msgpack:"degraded,omitempty"`
}

// ErrorResponse reports a refused or failed operation.
type ErrorResponse struct {
	ID    string `msgpack:"id,omitempty"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
