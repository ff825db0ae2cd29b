package rowstore

import "github.com/redis/go-redis/v9"

// The scripts below make every per-row write a single atomic step inside
// redis: filter check and mutation cannot interleave with another client.
//
// Filter arguments are encoded as ARGV[n] = count followed by count
// column/value pairs. HGET returns false for a missing field, which never
// equals a string, so NULL columns never match.

// insertScript
// KEYS[1]: row hash, KEYS[2]: id zset, KEYS[3]: sequence, KEYS[4..]: unique index keys
// ARGV[1]: id, ARGV[2..]: column/value pairs
// Returns 1 on success, 0 if the id exists, -i if the i-th unique key is taken.
var insertScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 1 then
		return 0
	end
	for i = 4, #KEYS do
		if redis.call("EXISTS", KEYS[i]) == 1 then
			return -(i - 3)
		end
	end
	redis.call("HSET", KEYS[1], unpack(ARGV, 2))
	local seq = redis.call("INCR", KEYS[3])
	redis.call("ZADD", KEYS[2], seq, ARGV[1])
	for i = 4, #KEYS do
		redis.call("SET", KEYS[i], ARGV[1])
	end
	return 1
`)

// updateScript
// KEYS[1]: row hash
// ARGV[1]: filter count, then filter pairs, then patch pairs
// Returns 1 when the row matched and was patched, 0 otherwise.
var updateScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end
	local n = tonumber(ARGV[1])
	for i = 0, n - 1 do
		if redis.call("HGET", KEYS[1], ARGV[2 + 2 * i]) ~= ARGV[3 + 2 * i] then
			return 0
		end
	end
	local start = 2 + 2 * n
	if #ARGV >= start then
		redis.call("HSET", KEYS[1], unpack(ARGV, start))
	end
	return 1
`)

// incrementScript
// KEYS[1]: row hash
// ARGV[1]: filter count, then filter pairs, then column, delta
// Returns 1 when the row matched and was incremented, 0 otherwise.
var incrementScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end
	local n = tonumber(ARGV[1])
	for i = 0, n - 1 do
		if redis.call("HGET", KEYS[1], ARGV[2 + 2 * i]) ~= ARGV[3 + 2 * i] then
			return 0
		end
	end
	redis.call("HINCRBY", KEYS[1], ARGV[2 + 2 * n], ARGV[3 + 2 * n])
	return 1
`)

// deleteScript
// KEYS[1]: row hash, KEYS[2]: id zset, KEYS[3..]: unique index keys of the row
// ARGV[1]: id, ARGV[2]: filter count, then filter pairs
// Index keys are removed only while they still point at this id.
var deleteScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return 0
	end
	local n = tonumber(ARGV[2])
	for i = 0, n - 1 do
		if redis.call("HGET", KEYS[1], ARGV[3 + 2 * i]) ~= ARGV[4 + 2 * i] then
			return 0
		end
	end
	for i = 3, #KEYS do
		if redis.call("GET", KEYS[i]) == ARGV[1] then
			redis.call("DEL", KEYS[i])
		end
	end
	redis.call("ZREM", KEYS[2], ARGV[1])
	redis.call("DEL", KEYS[1])
	return 1
`)
