package sqlinline

// QJobHistorySchema creates the job history table when it is missing.
const QJobHistorySchema = `--sql 2c6f0a1e-8d4b-4f3a-9b7e-51d2a6c8e3f4
create table if not exists novel_jobs (
    id            text primary key,
    prompt        text not null,
    state         text not null,
    status        text not null default '',
    progress      integer not null default 0,
    error_message text not null default '',
    result_json   jsonb,
    submitted_at  timestamptz not null,
    finished_at   timestamptz,
    updated_at    timestamptz not null default now()
);
`

const QJobHistoryUpsert = `--sql 7a1d3e59-0c2b-4e8f-a6d1-93b4f5e27c08
insert into novel_jobs (id, prompt, state, status, progress, error_message, result_json, submitted_at, finished_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
on conflict (id) do update
set state = excluded.state,
    status = excluded.status,
    progress = excluded.progress,
    error_message = excluded.error_message,
    result_json = coalesce(excluded.result_json, novel_jobs.result_json),
    finished_at = excluded.finished_at,
    updated_at = now();
`

const QJobHistoryGetByID = `--sql c4e8b217-5f9a-4d36-8e0b-6a2f7d1c9b53
select id, prompt, state, status, progress, error_message, result_json, submitted_at, finished_at
from novel_jobs
where id = $1;
`

const QJobHistoryListRecent = `--sql e9b05c74-3a16-4f2d-b8c9-0d7e4a6f1b25
select id, prompt, state, status, progress, error_message, result_json, submitted_at, finished_at
from novel_jobs
order by submitted_at desc
limit $1;
`
