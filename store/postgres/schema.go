package postgres

const schema = `
create table users
(
    user_id int not null
        primary key,
    uid varchar(20) not null,
    email_verified bool default 'f' not null,
    is_banned bool default 'f' not null,
    bonus_points bigint default 0 not null,
    constraint users_uid_uindex
        unique (uid)
);

create table torrent
(
    info_hash bytea check (octet_length(info_hash) = 20) not null
        primary key,
    is_freeleech bool default 'f' not null,
    is_deleted bool default 'f' not null,
    snatches int default 0 not null
);

create table progress
(
    user_id int not null,
    info_hash bytea check (octet_length(info_hash) = 20) not null,
    up_session bigint default 0 not null,
    up_total bigint default 0 not null,
    dn_session bigint default 0 not null,
    dn_total bigint default 0 not null,
    remaining bigint default 0 not null,
    primary key (user_id, info_hash)
);
`
