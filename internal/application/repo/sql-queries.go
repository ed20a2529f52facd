package repo

const outboxColumns = `id, email_id, status, priority, created_at, updated_at, retries, payload`

const insertOutboxEmail = `INSERT INTO outbox_email (
                    id, email_id, status, priority,
                    created_at, updated_at, retries, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const findOutboxEmailByID = `SELECT ` + outboxColumns + ` FROM outbox_email
WHERE id = $1`

// Приоритет всегда доминирует над временем: свежее HIGH-письмо уходит раньше
// старого NORMAL.
const findPendingBatch = `SELECT ` + outboxColumns + ` FROM outbox_email
WHERE status = $1
  AND (NOT $3::boolean OR priority = $4)
ORDER BY priority DESC, created_at
LIMIT $2`

// Потолок повторов зависит от приоритета строки, поэтому фильтр считается
// прямо в запросе: дошедшие до потолка HIGH-письма больше не выбираются,
// но остаются в таблице.
const findFailedBatch = `SELECT ` + outboxColumns + ` FROM outbox_email
WHERE status = $1
  AND retries < (CASE WHEN priority = $4 THEN $5 ELSE $6 END)
  AND (NOT $3::boolean OR priority = $4)
ORDER BY priority DESC, updated_at
LIMIT $2`

const updateOutboxEmail = `UPDATE outbox_email
SET email_id   = $2,
    status     = $3,
    priority   = $4,
    created_at = $5,
    updated_at = $6,
    retries    = $7,
    payload    = $8
WHERE id = $1`

const countSentInLastHour = `SELECT count(*) FROM outbox_email
WHERE status = $1
  AND updated_at > $2`

const deleteSentOlderThanAnHour = `DELETE FROM outbox_email
WHERE status = $1
  AND updated_at < $2`

const deleteOutboxEmail = `DELETE FROM outbox_email WHERE id = $1`

const selectEmailCounts = `SELECT
    count(*) FILTER (WHERE status = $1 AND updated_at > $4) AS sent_last_hour,
    count(*) FILTER (WHERE status = $2)                     AS pending,
    count(*) FILTER (WHERE status = $3)                     AS failed
FROM outbox_email`

// SCHEDULER LOCK
const acquireLock = `INSERT INTO scheduler_lock (name, lock_until, locked_at, locked_by)
VALUES ($1, now() + $2::interval, now(), $3)
ON CONFLICT (name) DO UPDATE
SET lock_until = now() + $2::interval,
    locked_at  = now(),
    locked_by  = $3
WHERE scheduler_lock.lock_until <= now()
RETURNING name`

// Освобождение не укорачивает блокировку ниже минимального времени удержания.
const releaseLock = `UPDATE scheduler_lock
SET lock_until = greatest(now(), locked_at + $2::interval)
WHERE name = $1
  AND locked_by = $3`
